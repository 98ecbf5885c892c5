package services

import (
	"context"
	"errors"
	"time"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

const (
	defaultReadRetries = 2
	defaultReadBackoff = 50 * time.Millisecond
)

// storeReader runs read-only store calls with a bounded exponential retry.
// Missing rows are never retried.
type storeReader struct {
	store   repositories.Store
	log     *logrus.Logger
	retries uint64
	backoff time.Duration
}

func newStoreReader(store repositories.Store, log *logrus.Logger) storeReader {
	return storeReader{store: store, log: log, retries: defaultReadRetries, backoff: defaultReadBackoff}
}

func (r storeReader) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(r.retries, retry.NewExponential(r.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, repositories.ErrNotFound) {
			return err
		}
		r.log.WithError(err).WithField("op", op).Warn("Store read failed")
		return retry.RetryableError(err)
	})
}

func (r storeReader) job(ctx context.Context, id uint) (*models.Job, error) {
	var job *models.Job
	err := r.do(ctx, "load job", func(ctx context.Context) error {
		var err error
		job, err = r.store.Jobs().FindByID(ctx, id)
		return err
	})
	switch {
	case err == nil:
		return job, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, jobNotFound(err)
	default:
		return nil, transientStore(err)
	}
}

func (r storeReader) userByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error) {
	var user *models.User
	err := r.do(ctx, "load user", func(ctx context.Context) error {
		var err error
		user, err = r.store.Users().FindByAuth0ID(ctx, auth0ID)
		return err
	})
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, userNotFound(err)
	default:
		return nil, transientStore(err)
	}
}

// jobAndActor loads the job before the actor so a missing job always wins
func (r storeReader) jobAndActor(ctx context.Context, jobID uint, auth0ID string) (*models.Job, *models.User, error) {
	job, err := r.job(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	actor, err := r.userByAuth0ID(ctx, auth0ID)
	if err != nil {
		return nil, nil, err
	}
	return job, actor, nil
}

// Option configures a service
type Option func(*serviceOptions)

type serviceOptions struct {
	now     func() time.Time
	retries uint64
	backoff time.Duration
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

// WithReadRetry sets how many times a failed read is retried and the base backoff
func WithReadRetry(retries uint64, backoff time.Duration) Option {
	return func(o *serviceOptions) {
		o.retries = retries
		o.backoff = backoff
	}
}

func applyOptions(opts []Option) serviceOptions {
	o := serviceOptions{
		now:     func() time.Time { return time.Now().UTC() },
		retries: defaultReadRetries,
		backoff: defaultReadBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
