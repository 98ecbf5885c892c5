package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigconnect/gigconnect-api/events"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Enqueuer is the part of *asynq.Client the notifier needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Notifier turns lifecycle events into email tasks. It implements
// events.Publisher.
type Notifier struct {
	client Enqueuer
	log    *logrus.Logger
}

// NewNotifier creates a notifier that enqueues on client
func NewNotifier(client Enqueuer, log *logrus.Logger) *Notifier {
	return &Notifier{client: client, log: log}
}

// Publish enqueues the email for e, if anyone is emailed about it
func (n *Notifier) Publish(ctx context.Context, e events.Event) error {
	taskType, recipientID, ok := route(e)
	if !ok {
		return nil
	}

	payload, err := json.Marshal(JobEmailPayload{RecipientID: recipientID, Event: e})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}

	info, err := n.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload),
		asynq.Queue(QueueEmails),
		asynq.MaxRetry(5),
		asynq.TaskID(e.ID),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}

	n.log.WithFields(logrus.Fields{
		"task":      taskType,
		"task_id":   info.ID,
		"job_id":    e.JobID,
		"recipient": recipientID,
	}).Debug("Notification enqueued")
	return nil
}
