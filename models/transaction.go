package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction records a wallet transfer from a client to a worker
type Transaction struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Reference  string          `gorm:"uniqueIndex;not null" json:"reference"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	FromUserID uint            `gorm:"not null;index" json:"from_user_id"`
	ToUserID   uint            `gorm:"not null;index" json:"to_user_id"`
	JobID      uint            `gorm:"uniqueIndex;not null" json:"job_id"` // one payment per job
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName specifies the table name for the Transaction model
func (Transaction) TableName() string {
	return "transactions"
}

// All lists every persisted model, in migration order
func All() []interface{} {
	return []interface{}{&User{}, &Job{}, &Rating{}, &Transaction{}}
}
