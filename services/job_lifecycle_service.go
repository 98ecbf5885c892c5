package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gigconnect/gigconnect-api/events"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxCommentLength = 1000

// ProofInput is the evidence a worker submits for a job
type ProofInput struct {
	ImageRef    string
	Description string
	Latitude    float64
	Longitude   float64
	CapturedAt  time.Time
}

func (p ProofInput) validate() error {
	switch {
	case strings.TrimSpace(p.ImageRef) == "":
		return validation("Proof image is required")
	case !IsImageKey(strings.TrimSpace(p.ImageRef)):
		return validation("Proof image reference is not a stored image")
	case p.Latitude < -90 || p.Latitude > 90:
		return validation("Latitude must be between -90 and 90")
	case p.Longitude < -180 || p.Longitude > 180:
		return validation("Longitude must be between -180 and 180")
	case p.CapturedAt.IsZero():
		return validation("Capture time is required")
	}
	return nil
}

// RatingInput is a client's score for a completed job
type RatingInput struct {
	Score   int
	Comment string
}

func (r RatingInput) validate() error {
	if r.Score < models.MinRating || r.Score > models.MaxRating {
		return validation(fmt.Sprintf("Rating must be between %d and %d", models.MinRating, models.MaxRating))
	}
	if len(r.Comment) > maxCommentLength {
		return validation(fmt.Sprintf("Comment must be at most %d characters", maxCommentLength))
	}
	return nil
}

// Payment is the outcome of approving a job
type Payment struct {
	Job         *models.Job         `json:"job"`
	Transaction *models.Transaction `json:"transaction"`
}

// JobLifecycleService is the only place a job changes status or moves money.
// Preconditions are checked in a fixed order: job exists, actor exists, actor
// is allowed, job status.
type JobLifecycleService struct {
	reader    storeReader
	store     repositories.Store
	publisher events.Publisher
	log       *logrus.Logger
	now       func() time.Time
}

var jobLifecycleServiceInstance *JobLifecycleService

// NewJobLifecycleService creates a lifecycle service
func NewJobLifecycleService(store repositories.Store, publisher events.Publisher, log *logrus.Logger, opts ...Option) *JobLifecycleService {
	o := applyOptions(opts)
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	reader := newStoreReader(store, log)
	reader.retries, reader.backoff = o.retries, o.backoff

	return &JobLifecycleService{
		reader:    reader,
		store:     store,
		publisher: publisher,
		log:       log,
		now:       o.now,
	}
}

// InitJobLifecycleService creates the process-wide lifecycle service
func InitJobLifecycleService(store repositories.Store, publisher events.Publisher, log *logrus.Logger, opts ...Option) *JobLifecycleService {
	jobLifecycleServiceInstance = NewJobLifecycleService(store, publisher, log, opts...)
	return jobLifecycleServiceInstance
}

// GetJobLifecycleService returns the initialized lifecycle service
func GetJobLifecycleService() *JobLifecycleService {
	return jobLifecycleServiceInstance
}

// SetJobLifecycleService sets the lifecycle service instance (primarily for testing)
func SetJobLifecycleService(service *JobLifecycleService) {
	jobLifecycleServiceInstance = service
}

// Accept assigns a pending job to the acting worker. When workers race, the
// first conditional update wins and the rest get ErrInvalidTransition.
func (s *JobLifecycleService) Accept(ctx context.Context, jobID uint, actorID string) (*models.Job, error) {
	job, actor, err := s.reader.jobAndActor(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsWorker() {
		return nil, unauthorized("Only workers can accept jobs")
	}
	if !job.Status.CanTransitionTo(models.JobStatusInProgress) {
		return nil, invalidTransition(fmt.Sprintf("Job is %s and can no longer be accepted", job.Status))
	}

	now := s.now()
	if err := s.store.Jobs().Claim(ctx, job.ID, actor.ID, now); err != nil {
		if errors.Is(err, repositories.ErrStatusChanged) {
			return nil, invalidTransition("Job was accepted by another worker")
		}
		return nil, transientStore(err)
	}

	job.Status = models.JobStatusInProgress
	job.WorkerID = &actor.ID
	job.Worker = actor
	job.AcceptedAt = &now

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "worker_id": actor.ID}).Info("Job accepted")
	s.publish(ctx, events.ForJob(events.JobAccepted, job, now))
	return job, nil
}

// SubmitProof attaches proof of work and moves the job to awaiting approval.
// Proof can be submitted once.
func (s *JobLifecycleService) SubmitProof(ctx context.Context, jobID uint, actorID string, input ProofInput) (*models.Job, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	job, actor, err := s.reader.jobAndActor(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}
	if !job.AssignedTo(actor.ID) {
		return nil, unauthorized("Only the worker assigned to this job can submit proof")
	}
	if !job.Status.CanTransitionTo(models.JobStatusAwaitingApproval) {
		return nil, invalidTransition(fmt.Sprintf("Proof cannot be submitted while the job is %s", job.Status))
	}

	now := s.now()
	lat, lng := input.Latitude, input.Longitude
	captured := input.CapturedAt.UTC()
	proof := models.Proof{
		ImageRef:    strings.TrimSpace(input.ImageRef),
		Description: strings.TrimSpace(input.Description),
		Latitude:    &lat,
		Longitude:   &lng,
		CapturedAt:  &captured,
		SubmittedAt: &now,
	}

	if err := s.store.Jobs().AttachProof(ctx, job.ID, actor.ID, proof); err != nil {
		if errors.Is(err, repositories.ErrStatusChanged) {
			return nil, invalidTransition("Proof has already been submitted for this job")
		}
		return nil, transientStore(err)
	}

	job.Status = models.JobStatusAwaitingApproval
	job.Proof = proof

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "worker_id": actor.ID}).Info("Proof submitted")
	s.publish(ctx, events.ForJob(events.ProofSubmitted, job, now))
	return job, nil
}

// ApproveAndPay completes the job and transfers its price from the client's
// wallet to the worker's wallet. The status change, both balance updates and
// the transaction record commit together or not at all.
func (s *JobLifecycleService) ApproveAndPay(ctx context.Context, jobID uint, actorID string) (*Payment, error) {
	job, actor, err := s.reader.jobAndActor(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != job.ClientID {
		return nil, unauthorized("Only the client who posted this job can approve it")
	}
	if !job.Status.CanTransitionTo(models.JobStatusCompleted) || job.WorkerID == nil {
		return nil, invalidTransition(fmt.Sprintf("Job is %s and cannot be approved", job.Status))
	}

	now := s.now()
	txn := &models.Transaction{
		Reference:  uuid.NewString(),
		Amount:     job.Price,
		FromUserID: job.ClientID,
		ToUserID:   *job.WorkerID,
		JobID:      job.ID,
		CreatedAt:  now,
	}

	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		if err := tx.Jobs().MarkCompleted(ctx, job.ID, now); err != nil {
			return err
		}

		client, worker, err := lockPair(ctx, tx, job.ClientID, *job.WorkerID)
		if err != nil {
			return err
		}

		remaining := client.WalletBalance.Sub(job.Price)
		if remaining.IsNegative() {
			return insufficientFunds()
		}
		if err := tx.Users().UpdateWallet(ctx, client.ID, remaining); err != nil {
			return err
		}
		if err := tx.Users().UpdateWallet(ctx, worker.ID, worker.WalletBalance.Add(job.Price)); err != nil {
			return err
		}
		return tx.Transactions().Create(ctx, txn)
	})
	if err != nil {
		return nil, s.mapWriteError(err, "Job has already been approved")
	}

	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now

	s.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"client_id": txn.FromUserID,
		"worker_id": txn.ToUserID,
		"amount":    txn.Amount.StringFixed(2),
		"reference": txn.Reference,
	}).Info("Job approved and paid")

	e := events.ForJob(events.JobCompleted, job, now)
	e.Amount = txn.Amount.StringFixed(2)
	s.publish(ctx, e)

	return &Payment{Job: job, Transaction: txn}, nil
}

// Rate records the client's rating for a completed job and folds it into the
// worker's running mean reputation
func (s *JobLifecycleService) Rate(ctx context.Context, jobID uint, actorID string, input RatingInput) (*models.Rating, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	job, actor, err := s.reader.jobAndActor(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != job.ClientID {
		return nil, unauthorized("Only the client who posted this job can rate it")
	}
	if job.Status != models.JobStatusCompleted || job.WorkerID == nil {
		return nil, invalidTransition("Only completed jobs can be rated")
	}

	now := s.now()
	rating := &models.Rating{
		JobID:     job.ID,
		WorkerID:  *job.WorkerID,
		ClientID:  actor.ID,
		Score:     input.Score,
		Comment:   strings.TrimSpace(input.Comment),
		CreatedAt: now,
	}

	err = s.store.WithinTransaction(ctx, func(tx repositories.Store) error {
		if _, err := tx.Ratings().FindByJobID(ctx, job.ID); err == nil {
			return duplicateRating()
		} else if !errors.Is(err, repositories.ErrNotFound) {
			return err
		}

		if err := tx.Ratings().Create(ctx, rating); err != nil {
			if errors.Is(err, repositories.ErrDuplicate) {
				return duplicateRating()
			}
			return err
		}

		worker, err := tx.Users().FindByIDForUpdate(ctx, rating.WorkerID)
		if err != nil {
			return err
		}
		reputation := RunningMean(worker.Reputation, worker.CompletedJobs, input.Score)
		return tx.Users().UpdateReputation(ctx, worker.ID, reputation, worker.CompletedJobs+1)
	})
	if err != nil {
		return nil, s.mapWriteError(err, "This job has already been rated")
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "worker_id": rating.WorkerID, "rating": rating.Score}).Info("Worker rated")

	e := events.ForJob(events.RatingCreated, job, now)
	e.Rating = rating.Score
	s.publish(ctx, e)

	return rating, nil
}

// RunningMean folds score into a mean of count previous scores. The result
// stays within the rating bounds.
func RunningMean(mean float64, count int, score int) float64 {
	if count <= 0 {
		return float64(score)
	}
	next := (mean*float64(count) + float64(score)) / float64(count+1)
	return math.Max(models.MinRating, math.Min(models.MaxRating, next))
}

// lockPair locks both users in id order so concurrent payments cannot deadlock
func lockPair(ctx context.Context, tx repositories.Store, clientID, workerID uint) (*models.User, *models.User, error) {
	first, second := clientID, workerID
	if second < first {
		first, second = second, first
	}

	a, err := tx.Users().FindByIDForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.Users().FindByIDForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}

	if a.ID == clientID {
		return a, b, nil
	}
	return b, a, nil
}

// mapWriteError turns a failed transaction into a lifecycle error
func (s *JobLifecycleService) mapWriteError(err error, duplicateMessage string) error {
	if le, ok := AsLifecycleError(err); ok {
		return le
	}
	switch {
	case errors.Is(err, repositories.ErrStatusChanged):
		return invalidTransition("Job status changed while the request was processed")
	case errors.Is(err, repositories.ErrDuplicate):
		return invalidTransition(duplicateMessage)
	default:
		s.log.WithError(err).Error("Lifecycle transaction failed")
		return transientStore(err)
	}
}

// publish is best-effort: the change is already committed
func (s *JobLifecycleService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(context.WithoutCancel(ctx), e); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"event": e.Type, "job_id": e.JobID}).Warn("Failed to publish event")
	}
}
