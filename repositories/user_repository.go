package repositories

import (
	"context"
	"fmt"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Worker leaderboard orderings
const (
	OrderByReputation    = "reputation"
	OrderByCompletedJobs = "completed_jobs"
)

// WorkerQuery filters and orders a worker listing
type WorkerQuery struct {
	Skill   string
	OrderBy string
	Limit   int
}

// UserRepository persists users
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error)
	// FindByIDForUpdate reads the row with a write lock held until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uint) (*models.User, error)
	UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) error
	UpdateWallet(ctx context.Context, id uint, balance decimal.Decimal) error
	UpdateReputation(ctx context.Context, id uint, reputation float64, completedJobs int) error
	ListWorkers(ctx context.Context, query WorkerQuery) ([]models.User, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (r *gormUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, translate(err))
	}
	return &user, nil
}

func (r *gormUserRepository) FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("find user %q: %w", auth0ID, translate(err))
	}
	return &user, nil
}

func (r *gormUserRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if err != nil {
		return nil, fmt.Errorf("lock user %d: %w", id, translate(err))
	}
	return &user, nil
}

func (r *gormUserRepository) UpdateProfile(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update user %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *gormUserRepository) UpdateWallet(ctx context.Context, id uint, balance decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Update("wallet_balance", balance)
	if res.Error != nil {
		return fmt.Errorf("update wallet %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update wallet %d: %w", id, ErrNotFound)
	}
	return nil
}

func (r *gormUserRepository) UpdateReputation(ctx context.Context, id uint, reputation float64, completedJobs int) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"reputation":     reputation,
			"completed_jobs": completedJobs,
		})
	if res.Error != nil {
		return fmt.Errorf("update reputation %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update reputation %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListWorkers returns workers ordered for the leaderboard. The skill filter
// is a case-insensitive prefix match and runs in Go because skills are stored
// as a JSON array.
func (r *gormUserRepository) ListWorkers(ctx context.Context, query WorkerQuery) ([]models.User, error) {
	limit := clampLimit(query.Limit, 50, 100)

	order := "reputation DESC, completed_jobs DESC, id ASC"
	if query.OrderBy == OrderByCompletedJobs {
		order = "completed_jobs DESC, reputation DESC, id ASC"
	}

	tx := r.db.WithContext(ctx).Where("role = ?", models.RoleWorker).Order(order)
	if query.Skill == "" {
		tx = tx.Limit(limit)
	}

	var workers []models.User
	if err := tx.Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("list workers: %w", translate(err))
	}

	if query.Skill == "" {
		return workers, nil
	}

	matched := make([]models.User, 0, len(workers))
	for _, w := range workers {
		if w.HasSkillPrefix(query.Skill) {
			matched = append(matched, w)
			if len(matched) == limit {
				break
			}
		}
	}
	return matched, nil
}
