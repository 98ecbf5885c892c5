package repositories

import (
	"context"
	"fmt"

	"github.com/gigconnect/gigconnect-api/models"
	"gorm.io/gorm"
)

// RatingRepository persists ratings. Ratings are append-only.
type RatingRepository interface {
	Create(ctx context.Context, rating *models.Rating) error
	FindByJobID(ctx context.Context, jobID uint) (*models.Rating, error)
	ListByWorker(ctx context.Context, workerID uint, limit int) ([]models.Rating, error)
}

type gormRatingRepository struct {
	db *gorm.DB
}

func (r *gormRatingRepository) Create(ctx context.Context, rating *models.Rating) error {
	if err := r.db.WithContext(ctx).Create(rating).Error; err != nil {
		return fmt.Errorf("create rating for job %d: %w", rating.JobID, translate(err))
	}
	return nil
}

func (r *gormRatingRepository) FindByJobID(ctx context.Context, jobID uint) (*models.Rating, error) {
	var rating models.Rating
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&rating).Error; err != nil {
		return nil, fmt.Errorf("find rating for job %d: %w", jobID, translate(err))
	}
	return &rating, nil
}

func (r *gormRatingRepository) ListByWorker(ctx context.Context, workerID uint, limit int) ([]models.Rating, error) {
	var ratings []models.Rating
	err := r.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit, 50, 100)).
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("list ratings for worker %d: %w", workerID, translate(err))
	}
	return ratings, nil
}
