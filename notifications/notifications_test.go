package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/events"
	"github.com/gigconnect/gigconnect-api/logger"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/repositories"
	"github.com/gigconnect/gigconnect-api/tests/testutil"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type(), Queue: QueueEmails}, nil
}

type fakeMailer struct {
	sent []Envelope
	err  error
}

func (f *fakeMailer) Send(_ context.Context, env Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	return nil
}

func event(t events.Type) events.Event {
	return events.Event{
		ID:         "evt-1",
		Type:       t,
		JobID:      7,
		JobTitle:   "Fix a leaking tap",
		ClientID:   1,
		WorkerID:   2,
		Amount:     "150.00",
		Rating:     4,
		OccurredAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestNotifierRoutesEvents(t *testing.T) {
	tests := []struct {
		event     events.Type
		task      string
		recipient uint
	}{
		{events.JobAccepted, TaskJobAccepted, 1},
		{events.ProofSubmitted, TaskProofSubmitted, 1},
		{events.JobCompleted, TaskJobCompleted, 2},
		{events.RatingCreated, TaskRatingCreated, 2},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			q := &fakeEnqueuer{}
			n := NewNotifier(q, logger.Discard())

			require.NoError(t, n.Publish(context.Background(), event(tt.event)))
			require.Len(t, q.tasks, 1)
			assert.Equal(t, tt.task, q.tasks[0].Type())

			var payload JobEmailPayload
			require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &payload))
			assert.Equal(t, tt.recipient, payload.RecipientID)
			assert.Equal(t, uint(7), payload.Event.JobID)
		})
	}
}

func TestNotifierIgnoresJobPosted(t *testing.T) {
	q := &fakeEnqueuer{}
	n := NewNotifier(q, logger.Discard())

	require.NoError(t, n.Publish(context.Background(), event(events.JobPosted)))
	assert.Empty(t, q.tasks)
}

func TestNotifierReturnsEnqueueError(t *testing.T) {
	q := &fakeEnqueuer{err: errors.New("redis down")}
	n := NewNotifier(q, logger.Discard())

	err := n.Publish(context.Background(), event(events.JobAccepted))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestProcessTask(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := repositories.NewGormStore(db)
	worker := testutil.CreateUser(t, db, models.RoleWorker, "0")

	e := event(events.JobCompleted)
	e.WorkerID = worker.ID
	payload, err := json.Marshal(JobEmailPayload{RecipientID: worker.ID, Event: e})
	require.NoError(t, err)

	mailer := &fakeMailer{}
	p := NewProcessor(store, mailer, logger.Discard())

	require.NoError(t, p.ProcessTask(context.Background(), asynq.NewTask(TaskJobCompleted, payload)))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, worker.Email, mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, "150.00")

	t.Run("missing recipient is not retried", func(t *testing.T) {
		payload, _ := json.Marshal(JobEmailPayload{RecipientID: 9999, Event: e})
		err := p.ProcessTask(context.Background(), asynq.NewTask(TaskJobCompleted, payload))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("malformed payload is not retried", func(t *testing.T) {
		err := p.ProcessTask(context.Background(), asynq.NewTask(TaskJobCompleted, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("send failure is retried", func(t *testing.T) {
		failing := NewProcessor(store, &fakeMailer{err: errors.New("smtp timeout")}, logger.Discard())
		err := failing.ProcessTask(context.Background(), asynq.NewTask(TaskJobCompleted, payload))
		require.Error(t, err)
		assert.NotErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestRender(t *testing.T) {
	recipient := &models.User{Name: "Ada", Email: "ada@example.com"}

	for _, typ := range []events.Type{events.JobAccepted, events.ProofSubmitted, events.JobCompleted, events.RatingCreated} {
		env := Render(event(typ), recipient)
		assert.Equal(t, "ada@example.com", env.To)
		assert.Contains(t, env.Subject, "Fix a leaking tap")
		assert.Contains(t, env.Body, "Ada")
	}

	assert.Contains(t, Render(event(events.RatingCreated), recipient).Body, "4 out of 5")
}

func TestNewMailer(t *testing.T) {
	_, isLog := NewMailer(&config.Config{}, logger.Discard()).(LogMailer)
	assert.True(t, isLog)

	_, isSMTP := NewMailer(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587}, logger.Discard()).(*SMTPMailer)
	assert.True(t, isSMTP)
}
