package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/gigconnect/gigconnect-api/models"
	"gorm.io/gorm"
)

// JobQuery filters a job listing. Zero values mean "any".
type JobQuery struct {
	Status   models.JobStatus
	Category string
	ClientID uint
	WorkerID uint
	Limit    int
}

// JobRepository persists jobs. The status-changing methods are conditional
// updates: they only apply while the job still has the expected status and
// return ErrStatusChanged otherwise.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	FindByID(ctx context.Context, id uint) (*models.Job, error)
	List(ctx context.Context, query JobQuery) ([]models.Job, error)

	// Claim moves a pending job to in_progress and records the worker
	Claim(ctx context.Context, jobID, workerID uint, at time.Time) error
	// AttachProof moves an in_progress job held by workerID to awaiting_approval
	AttachProof(ctx context.Context, jobID, workerID uint, proof models.Proof) error
	// MarkCompleted moves an awaiting_approval job to completed
	MarkCompleted(ctx context.Context, jobID uint, at time.Time) error
}

type gormJobRepository struct {
	db *gorm.DB
}

func (r *gormJobRepository) Create(ctx context.Context, job *models.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", translate(err))
	}
	return nil
}

func (r *gormJobRepository) FindByID(ctx context.Context, id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Worker").
		First(&job, id).Error
	if err != nil {
		return nil, fmt.Errorf("find job %d: %w", id, translate(err))
	}
	return &job, nil
}

func (r *gormJobRepository) List(ctx context.Context, query JobQuery) ([]models.Job, error) {
	tx := r.db.WithContext(ctx).Preload("Client").Preload("Worker")

	if query.Status != "" {
		tx = tx.Where("status = ?", query.Status)
	}
	if query.Category != "" {
		tx = tx.Where("category = ?", query.Category)
	}
	if query.ClientID != 0 {
		tx = tx.Where("client_id = ?", query.ClientID)
	}
	if query.WorkerID != 0 {
		tx = tx.Where("worker_id = ?", query.WorkerID)
	}

	var jobs []models.Job
	err := tx.Order("created_at DESC, id DESC").
		Limit(clampLimit(query.Limit, 50, 100)).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", translate(err))
	}
	return jobs, nil
}

func (r *gormJobRepository) Claim(ctx context.Context, jobID, workerID uint, at time.Time) error {
	return r.transition(ctx, r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ? AND worker_id IS NULL", jobID, models.JobStatusPending),
		jobID, map[string]interface{}{
			"status":      models.JobStatusInProgress,
			"worker_id":   workerID,
			"accepted_at": at,
		})
}

func (r *gormJobRepository) AttachProof(ctx context.Context, jobID, workerID uint, proof models.Proof) error {
	return r.transition(ctx, r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ? AND worker_id = ?", jobID, models.JobStatusInProgress, workerID),
		jobID, map[string]interface{}{
			"status":             models.JobStatusAwaitingApproval,
			"proof_image_ref":    proof.ImageRef,
			"proof_description":  proof.Description,
			"proof_latitude":     proof.Latitude,
			"proof_longitude":    proof.Longitude,
			"proof_captured_at":  proof.CapturedAt,
			"proof_submitted_at": proof.SubmittedAt,
		})
}

func (r *gormJobRepository) MarkCompleted(ctx context.Context, jobID uint, at time.Time) error {
	return r.transition(ctx, r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusAwaitingApproval),
		jobID, map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"completed_at": at,
		})
}

func (r *gormJobRepository) transition(_ context.Context, tx *gorm.DB, jobID uint, updates map[string]interface{}) error {
	res := tx.Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update job %d: %w", jobID, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update job %d: %w", jobID, ErrStatusChanged)
	}
	return nil
}
