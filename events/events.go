package events

import (
	"context"
	"errors"
	"time"

	"github.com/gigconnect/gigconnect-api/models"
	"github.com/google/uuid"
)

// Type names a lifecycle event. It doubles as the AMQP routing key.
type Type string

const (
	JobPosted      Type = "job.posted"
	JobAccepted    Type = "job.accepted"
	ProofSubmitted Type = "job.proof_submitted"
	JobCompleted   Type = "job.completed"
	RatingCreated  Type = "rating.created"
)

// Event is emitted after a lifecycle change has been committed
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	JobID      uint      `json:"job_id"`
	JobTitle   string    `json:"job_title"`
	ClientID   uint      `json:"client_id"`
	WorkerID   uint      `json:"worker_id,omitempty"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount,omitempty"`
	Rating     int       `json:"rating,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ForJob builds an event describing job's current state
func ForJob(t Type, job *models.Job, at time.Time) Event {
	e := Event{
		ID:         uuid.NewString(),
		Type:       t,
		JobID:      job.ID,
		JobTitle:   job.Title,
		ClientID:   job.ClientID,
		Status:     string(job.Status),
		OccurredAt: at,
	}
	if job.WorkerID != nil {
		e.WorkerID = *job.WorkerID
	}
	return e
}

// Publisher delivers events to a sink. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// MultiPublisher fans an event out to every sink
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher skips nil publishers
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish delivers to all sinks, even when some fail, and joins the errors
func (m *MultiPublisher) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks
func (m *MultiPublisher) Len() int {
	return len(m.publishers)
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
