package repositories

import (
	"context"
	"fmt"

	"github.com/gigconnect/gigconnect-api/models"
	"gorm.io/gorm"
)

// TransactionRepository persists wallet transfers. Transactions are append-only.
type TransactionRepository interface {
	Create(ctx context.Context, txn *models.Transaction) error
	// ListForUser returns the newest transfers where the user is sender or receiver
	ListForUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error)
}

type gormTransactionRepository struct {
	db *gorm.DB
}

func (r *gormTransactionRepository) Create(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("create transaction for job %d: %w", txn.JobID, translate(err))
	}
	return nil
}

func (r *gormTransactionRepository) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, 20, 100)).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions for user %d: %w", userID, translate(err))
	}
	return txns, nil
}
