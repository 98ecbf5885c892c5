package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// NewTestDB opens a migrated in-memory SQLite database. The pool is limited to
// one connection so every goroutine in a test sees the same database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// CreateUser inserts a user with the given role and wallet balance
func CreateUser(t *testing.T, db *gorm.DB, role string, balance string) *models.User {
	t.Helper()

	n := seq.Add(1)
	user := &models.User{
		Auth0ID:       fmt.Sprintf("auth0|%s%d", role, n),
		Name:          fmt.Sprintf("%s %d", role, n),
		Email:         fmt.Sprintf("%s%d@example.com", role, n),
		Role:          role,
		WalletBalance: decimal.RequireFromString(balance),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

// CreateJob inserts a job posted by client. If worker is non-nil the job is
// assigned to them.
func CreateJob(t *testing.T, db *gorm.DB, client *models.User, worker *models.User, status models.JobStatus, price string) *models.Job {
	t.Helper()

	job := &models.Job{
		Title:       "Fix a leaking tap",
		Description: "Kitchen tap drips constantly",
		Location:    "Lusaka",
		Category:    "plumbing",
		Skills:      []string{"plumbing"},
		Price:       decimal.RequireFromString(price),
		Status:      status,
		ClientID:    client.ID,
	}
	if worker != nil {
		job.WorkerID = &worker.ID
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	return job
}

// ReloadUser reads the user's current row
func ReloadUser(t *testing.T, db *gorm.DB, id uint) *models.User {
	t.Helper()

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		t.Fatalf("Failed to reload user %d: %v", id, err)
	}
	return &user
}

// ReloadJob reads the job's current row
func ReloadJob(t *testing.T, db *gorm.DB, id uint) *models.Job {
	t.Helper()

	var job models.Job
	if err := db.First(&job, id).Error; err != nil {
		t.Fatalf("Failed to reload job %d: %v", id, err)
	}
	return &job
}
