package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const walletHistoryLimit = 20

// Profile field limits, in characters
const (
	maxPhoneLength    = 32
	maxLocationLength = 200
	maxBioLength      = 1000
)

// NewUserInput is the profile data for signup
type NewUserInput struct {
	Auth0ID string
	Name    string
	Email   string
	Role    string
	Skills  []string
}

// ProfileUpdate holds optional profile changes. Nil fields are left unchanged;
// an empty phone, bio, location or avatar clears it.
type ProfileUpdate struct {
	Name      *string
	Email     *string
	Skills    []string
	Phone     *string
	Bio       *string
	Location  *string
	AvatarRef *string
}

func (u ProfileUpdate) validate() error {
	limits := []struct {
		field string
		value *string
		max   int
	}{
		{"Phone", u.Phone, maxPhoneLength},
		{"Location", u.Location, maxLocationLength},
		{"Bio", u.Bio, maxBioLength},
	}
	for _, l := range limits {
		if l.value != nil && utf8.RuneCountInString(strings.TrimSpace(*l.value)) > l.max {
			return validation(fmt.Sprintf("%s must be at most %d characters", l.field, l.max))
		}
	}
	if u.AvatarRef != nil {
		if ref := strings.TrimSpace(*u.AvatarRef); ref != "" && !IsImageKey(ref) {
			return validation("Avatar must reference an uploaded image")
		}
	}
	return nil
}

// Wallet is a user's balance with their most recent transfers
type Wallet struct {
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []models.Transaction `json:"transactions"`
}

// UserService manages profiles, wallets and worker listings
type UserService struct {
	reader          storeReader
	store           repositories.Store
	log             *logrus.Logger
	startingBalance decimal.Decimal
}

var userServiceInstance *UserService

// NewUserService creates a user service. New clients are credited startingBalance.
func NewUserService(store repositories.Store, startingBalance decimal.Decimal, log *logrus.Logger, opts ...Option) *UserService {
	o := applyOptions(opts)
	reader := newStoreReader(store, log)
	reader.retries, reader.backoff = o.retries, o.backoff
	return &UserService{reader: reader, store: store, log: log, startingBalance: startingBalance}
}

// InitUserService creates the process-wide user service
func InitUserService(store repositories.Store, startingBalance decimal.Decimal, log *logrus.Logger, opts ...Option) *UserService {
	userServiceInstance = NewUserService(store, startingBalance, log, opts...)
	return userServiceInstance
}

// GetUserService returns the initialized user service
func GetUserService() *UserService {
	return userServiceInstance
}

// SetUserService sets the user service instance (primarily for testing)
func SetUserService(service *UserService) {
	userServiceInstance = service
}

// Register creates the caller's profile. Clients start with the configured
// balance, workers with an empty wallet.
func (s *UserService) Register(ctx context.Context, input NewUserInput) (*models.User, error) {
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if role == "" {
		role = models.RoleClient
	}
	if !models.ValidRole(role) {
		return nil, validation("Role must be client or worker")
	}
	if strings.TrimSpace(input.Email) == "" {
		return nil, validation("Email is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, validation("Name is required")
	}

	user := &models.User{
		Auth0ID:       input.Auth0ID,
		Name:          strings.TrimSpace(input.Name),
		Email:         strings.TrimSpace(input.Email),
		Role:          role,
		WalletBalance: decimal.Zero,
		Skills:        normalizeSkills(input.Skills),
	}
	if role == models.RoleClient {
		user.WalletBalance = s.startingBalance
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, conflict("USER_EXISTS", "A user with this Auth0 ID or email already exists", err)
		}
		return nil, transientStore(err)
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("User registered")
	return user, nil
}

// Profile returns the caller's profile
func (s *UserService) Profile(ctx context.Context, actorID string) (*models.User, error) {
	return s.reader.userByAuth0ID(ctx, actorID)
}

// UpdateProfile applies the non-nil fields of update
func (s *UserService) UpdateProfile(ctx context.Context, actorID string, update ProfileUpdate) (*models.User, error) {
	user, err := s.reader.userByAuth0ID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := update.validate(); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if update.Name != nil && strings.TrimSpace(*update.Name) != "" {
		updates["name"] = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil && strings.TrimSpace(*update.Email) != "" {
		updates["email"] = strings.TrimSpace(*update.Email)
	}
	if update.Skills != nil {
		updates["skills"] = datatypes.JSONSlice[string](normalizeSkills(update.Skills))
	}
	for column, value := range map[string]*string{
		"phone":      update.Phone,
		"bio":        update.Bio,
		"location":   update.Location,
		"avatar_ref": update.AvatarRef,
	} {
		if value != nil {
			updates[column] = strings.TrimSpace(*value)
		}
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.store.Users().UpdateProfile(ctx, user.ID, updates); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, conflict("EMAIL_EXISTS", "A user with this email already exists", err)
		}
		return nil, transientStore(err)
	}

	return s.reader.userByAuth0ID(ctx, actorID)
}

// Wallet returns the caller's balance and last transfers
func (s *UserService) Wallet(ctx context.Context, actorID string) (*Wallet, error) {
	user, err := s.reader.userByAuth0ID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var txns []models.Transaction
	err = s.reader.do(ctx, "wallet history", func(ctx context.Context) error {
		var err error
		txns, err = s.store.Transactions().ListForUser(ctx, user.ID, walletHistoryLimit)
		return err
	})
	if err != nil {
		return nil, transientStore(err)
	}

	return &Wallet{Balance: user.WalletBalance, Transactions: txns}, nil
}

// Leaderboard ranks workers by reputation or completed jobs
func (s *UserService) Leaderboard(ctx context.Context, sort string) ([]models.User, error) {
	switch sort {
	case "":
		sort = repositories.OrderByReputation
	case repositories.OrderByReputation, repositories.OrderByCompletedJobs:
	default:
		return nil, validation("sort must be reputation or completed_jobs")
	}
	return s.listWorkers(ctx, repositories.WorkerQuery{OrderBy: sort, Limit: 50})
}

// SearchWorkers finds workers with the given skill, best rated first
func (s *UserService) SearchWorkers(ctx context.Context, skill string, limit int) ([]models.User, error) {
	return s.listWorkers(ctx, repositories.WorkerQuery{
		Skill:   strings.TrimSpace(skill),
		OrderBy: repositories.OrderByReputation,
		Limit:   limit,
	})
}

// WorkerRatings lists the ratings a worker has received, newest first
func (s *UserService) WorkerRatings(ctx context.Context, workerID uint) ([]models.Rating, error) {
	var worker *models.User
	err := s.reader.do(ctx, "load worker", func(ctx context.Context) error {
		var err error
		worker, err = s.store.Users().FindByID(ctx, workerID)
		return err
	})
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !worker.IsWorker()) {
		return nil, &LifecycleError{Kind: ErrNotFound, Code: "WORKER_NOT_FOUND", Message: "Worker not found", Err: err}
	}
	if err != nil {
		return nil, transientStore(err)
	}

	var ratings []models.Rating
	err = s.reader.do(ctx, "worker ratings", func(ctx context.Context) error {
		var err error
		ratings, err = s.store.Ratings().ListByWorker(ctx, worker.ID, 100)
		return err
	})
	if err != nil {
		return nil, transientStore(err)
	}
	return ratings, nil
}

func (s *UserService) listWorkers(ctx context.Context, query repositories.WorkerQuery) ([]models.User, error) {
	var workers []models.User
	err := s.reader.do(ctx, "list workers", func(ctx context.Context) error {
		var err error
		workers, err = s.store.Users().ListWorkers(ctx, query)
		return err
	})
	if err != nil {
		return nil, transientStore(err)
	}
	return workers, nil
}
