package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gigconnect/gigconnect-api/events"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Processor renders and sends the emails enqueued by Notifier
type Processor struct {
	store  repositories.Store
	mailer Mailer
	log    *logrus.Logger
}

// NewProcessor creates a processor
func NewProcessor(store repositories.Store, mailer Mailer, log *logrus.Logger) *Processor {
	return &Processor{store: store, mailer: mailer, log: log}
}

// ServeMux routes every notification task type to the processor
func (p *Processor) ServeMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, taskType := range []string{TaskJobAccepted, TaskProofSubmitted, TaskJobCompleted, TaskRatingCreated} {
		mux.HandleFunc(taskType, p.ProcessTask)
	}
	return mux
}

// ProcessTask sends one notification. Malformed payloads and deleted
// recipients are not retried.
func (p *Processor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload JobEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}

	recipient, err := p.store.Users().FindByID(ctx, payload.RecipientID)
	if errors.Is(err, repositories.ErrNotFound) {
		p.log.WithField("recipient", payload.RecipientID).Warn("Notification recipient no longer exists")
		return fmt.Errorf("recipient %d: %w", payload.RecipientID, asynq.SkipRetry)
	}
	if err != nil {
		return err
	}

	env := Render(payload.Event, recipient)
	if err := p.mailer.Send(ctx, env); err != nil {
		p.log.WithError(err).WithField("task", t.Type()).Error("Notification send failed")
		return err
	}

	p.log.WithFields(logrus.Fields{"task": t.Type(), "job_id": payload.Event.JobID, "to": env.To}).Info("Notification sent")
	return nil
}

// Render builds the email a recipient gets for an event
func Render(e events.Event, recipient *models.User) Envelope {
	env := Envelope{To: recipient.Email}
	switch e.Type {
	case events.JobAccepted:
		env.Subject = fmt.Sprintf("A worker accepted %q", e.JobTitle)
		env.Body = fmt.Sprintf("Hi %s,\n\nA worker has accepted your job %q and will start soon.", recipient.Name, e.JobTitle)
	case events.ProofSubmitted:
		env.Subject = fmt.Sprintf("Proof of work submitted for %q", e.JobTitle)
		env.Body = fmt.Sprintf("Hi %s,\n\nThe worker submitted proof of work for %q. Review it and approve to release payment.", recipient.Name, e.JobTitle)
	case events.JobCompleted:
		env.Subject = fmt.Sprintf("You were paid for %q", e.JobTitle)
		env.Body = fmt.Sprintf("Hi %s,\n\nThe client approved %q. %s has been added to your wallet.", recipient.Name, e.JobTitle, e.Amount)
	case events.RatingCreated:
		env.Subject = fmt.Sprintf("New rating for %q", e.JobTitle)
		env.Body = fmt.Sprintf("Hi %s,\n\nThe client rated your work on %q %d out of %d.", recipient.Name, e.JobTitle, e.Rating, models.MaxRating)
	default:
		env.Subject = e.JobTitle
		env.Body = fmt.Sprintf("Job %q is now %s.", e.JobTitle, e.Status)
	}
	return env
}

// NewServer creates the asynq worker for the email queue
func NewServer(redisAddr string, log *logrus.Logger) *asynq.Server {
	return asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{QueueEmails: 10},
		Logger:      log,
	})
}
