package repositories

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
	// ErrStatusChanged is returned when a conditional update matched no rows
	// because the job left the expected status first
	ErrStatusChanged = errors.New("job status changed concurrently")
)

// Store groups the repositories behind one unit of work
type Store interface {
	Users() UserRepository
	Jobs() JobRepository
	Ratings() RatingRepository
	Transactions() TransactionRepository

	// WithinTransaction runs fn against a Store bound to a single database
	// transaction. Returning an error from fn rolls everything back.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
}

// GormStore implements Store on top of gorm
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store using db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Users() UserRepository {
	return &gormUserRepository{db: s.db}
}

func (s *GormStore) Jobs() JobRepository {
	return &gormJobRepository{db: s.db}
}

func (s *GormStore) Ratings() RatingRepository {
	return &gormRatingRepository{db: s.db}
}

func (s *GormStore) Transactions() TransactionRepository {
	return &gormTransactionRepository{db: s.db}
}

func (s *GormStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// translate maps driver errors onto the package sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return errors.Join(ErrDuplicate, err)
	default:
		return err
	}
}

// isUniqueViolation catches drivers opened without TranslateError (works with both PostgreSQL and SQLite)
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
