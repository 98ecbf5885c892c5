package models

import "time"

// Rating is a client's score for the worker who completed a job
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     uint      `gorm:"uniqueIndex;not null" json:"job_id"` // one rating per job
	WorkerID  uint      `gorm:"not null;index" json:"worker_id"`
	ClientID  uint      `gorm:"not null;index" json:"client_id"`
	Score     int       `gorm:"not null" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the Rating model
func (Rating) TableName() string {
	return "ratings"
}

// Rating bounds
const (
	MinRating = 1
	MaxRating = 5
)
