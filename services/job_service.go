package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gigconnect/gigconnect-api/events"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// NewJobInput describes a job a client wants to post
type NewJobInput struct {
	Title       string
	Description string
	Location    string
	Category    string
	Skills      []string
	Price       decimal.Decimal
}

// FeedQuery filters the public job feed
type FeedQuery struct {
	Status   string
	Category string
	Limit    int
}

// JobService posts jobs and serves job listings. Status changes after
// posting belong to JobLifecycleService.
type JobService struct {
	reader    storeReader
	store     repositories.Store
	publisher events.Publisher
	log       *logrus.Logger
	opts      serviceOptions
}

var jobServiceInstance *JobService

// NewJobService creates a job service
func NewJobService(store repositories.Store, publisher events.Publisher, log *logrus.Logger, opts ...Option) *JobService {
	o := applyOptions(opts)
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	reader := newStoreReader(store, log)
	reader.retries, reader.backoff = o.retries, o.backoff
	return &JobService{reader: reader, store: store, publisher: publisher, log: log, opts: o}
}

// InitJobService creates the process-wide job service
func InitJobService(store repositories.Store, publisher events.Publisher, log *logrus.Logger, opts ...Option) *JobService {
	jobServiceInstance = NewJobService(store, publisher, log, opts...)
	return jobServiceInstance
}

// GetJobService returns the initialized job service
func GetJobService() *JobService {
	return jobServiceInstance
}

// SetJobService sets the job service instance (primarily for testing)
func SetJobService(service *JobService) {
	jobServiceInstance = service
}

// PostJob creates a pending job owned by the acting client
func (s *JobService) PostJob(ctx context.Context, actorID string, input NewJobInput) (*models.Job, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, validation("Title is required")
	}
	if !input.Price.IsPositive() {
		return nil, validation("Price must be greater than zero")
	}
	if !input.Price.Equal(input.Price.Round(2)) {
		return nil, validation("Price must have at most two decimal places")
	}
	if input.Price.GreaterThan(models.MaxPrice) {
		return nil, validation(fmt.Sprintf("Price must be at most %s", models.MaxPrice.StringFixed(2)))
	}

	actor, err := s.reader.userByAuth0ID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsClient() {
		return nil, unauthorized("Only clients can post jobs")
	}

	job := &models.Job{
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		Location:    strings.TrimSpace(input.Location),
		Category:    strings.ToLower(strings.TrimSpace(input.Category)),
		Skills:      normalizeSkills(input.Skills),
		Price:       input.Price,
		Status:      models.JobStatusPending,
		ClientID:    actor.ID,
		Client:      actor,
	}
	if err := s.store.Jobs().Create(ctx, job); err != nil {
		return nil, transientStore(err)
	}

	s.log.WithFields(logrus.Fields{"job_id": job.ID, "client_id": actor.ID}).Info("Job posted")
	if err := s.publisher.Publish(context.WithoutCancel(ctx), events.ForJob(events.JobPosted, job, s.opts.now())); err != nil {
		s.log.WithError(err).WithField("job_id", job.ID).Warn("Failed to publish event")
	}
	return job, nil
}

// Feed lists jobs by status, pending by default
func (s *JobService) Feed(ctx context.Context, query FeedQuery) ([]models.Job, error) {
	status := models.JobStatusPending
	if query.Status != "" {
		status = models.JobStatus(query.Status)
		if !status.Valid() {
			return nil, validation("Unknown job status " + query.Status)
		}
	}

	var jobs []models.Job
	err := s.reader.do(ctx, "job feed", func(ctx context.Context) error {
		var err error
		jobs, err = s.store.Jobs().List(ctx, repositories.JobQuery{
			Status:   status,
			Category: strings.ToLower(strings.TrimSpace(query.Category)),
			Limit:    query.Limit,
		})
		return err
	})
	if err != nil {
		return nil, transientStore(err)
	}
	return jobs, nil
}

// Get returns one job with its client and worker
func (s *JobService) Get(ctx context.Context, jobID uint) (*models.Job, error) {
	return s.reader.job(ctx, jobID)
}

// ListMine returns the jobs a client posted or a worker holds
func (s *JobService) ListMine(ctx context.Context, actorID string, status string) ([]models.Job, error) {
	actor, err := s.reader.userByAuth0ID(ctx, actorID)
	if err != nil {
		return nil, err
	}

	query := repositories.JobQuery{Limit: 100}
	if status != "" {
		query.Status = models.JobStatus(status)
		if !query.Status.Valid() {
			return nil, validation("Unknown job status " + status)
		}
	}
	if actor.IsWorker() {
		query.WorkerID = actor.ID
	} else {
		query.ClientID = actor.ID
	}

	var jobs []models.Job
	err = s.reader.do(ctx, "my jobs", func(ctx context.Context) error {
		var err error
		jobs, err = s.store.Jobs().List(ctx, query)
		return err
	})
	if err != nil {
		return nil, transientStore(err)
	}
	return jobs, nil
}

// RatingForJob returns the job's rating to its client or worker
func (s *JobService) RatingForJob(ctx context.Context, jobID uint, actorID string) (*models.Rating, error) {
	job, actor, err := s.reader.jobAndActor(ctx, jobID, actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID != job.ClientID && !job.AssignedTo(actor.ID) {
		return nil, unauthorized("Only the job's client or worker can view its rating")
	}

	var rating *models.Rating
	err = s.reader.do(ctx, "job rating", func(ctx context.Context) error {
		var err error
		rating, err = s.store.Ratings().FindByJobID(ctx, job.ID)
		return err
	})
	switch {
	case err == nil:
		return rating, nil
	case errors.Is(err, repositories.ErrNotFound):
		return nil, &LifecycleError{Kind: ErrNotFound, Code: "RATING_NOT_FOUND", Message: "This job has not been rated yet", Err: err}
	default:
		return nil, transientStore(err)
	}
}

func normalizeSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" || seen[skill] {
			continue
		}
		seen[skill] = true
		out = append(out, skill)
	}
	return out
}
