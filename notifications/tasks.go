package notifications

import (
	"github.com/gigconnect/gigconnect-api/events"
)

// QueueEmails is the asynq queue notification emails are sent on
const QueueEmails = "emails"

// Task type constants
const (
	TaskJobAccepted    = "email:job_accepted"
	TaskProofSubmitted = "email:proof_submitted"
	TaskJobCompleted   = "email:job_completed"
	TaskRatingCreated  = "email:rating_created"
)

// Envelope is a rendered email
type Envelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// JobEmailPayload is the task payload for every job notification. The
// recipient's address is looked up when the task runs, so a changed email
// is honoured.
type JobEmailPayload struct {
	RecipientID uint         `json:"recipient_id"`
	Event       events.Event `json:"event"`
}

// route returns the task type and recipient for an event. Events nobody is
// emailed about return ok=false.
func route(e events.Event) (taskType string, recipientID uint, ok bool) {
	switch e.Type {
	case events.JobAccepted:
		return TaskJobAccepted, e.ClientID, true
	case events.ProofSubmitted:
		return TaskProofSubmitted, e.ClientID, true
	case events.JobCompleted:
		return TaskJobCompleted, e.WorkerID, e.WorkerID != 0
	case events.RatingCreated:
		return TaskRatingCreated, e.WorkerID, e.WorkerID != 0
	}
	return "", 0, false
}
