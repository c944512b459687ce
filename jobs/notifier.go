package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/natours/natours/internal/auth"
	jobmetrics "github.com/natours/natours/internal/jobs"
)

// Enqueuer accepts mail tasks.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueNotifier hands notifications to the mail queue. A nil error means the
// task was enqueued, not that the message reached the recipient.
type QueueNotifier struct {
	queue   Enqueuer
	metrics *jobmetrics.Metrics
}

// NewQueueNotifier wraps queue.
func NewQueueNotifier(queue Enqueuer, metrics *jobmetrics.Metrics) *QueueNotifier {
	return &QueueNotifier{queue: queue, metrics: metrics}
}

// Send enqueues msg for delivery by the worker.
func (n *QueueNotifier) Send(ctx context.Context, msg auth.Message) error {
	_, err := n.queue.EnqueueSendEmail(ctx, SendEmailPayload{To: msg.To, Subject: msg.Subject, Body: msg.Body})
	n.metrics.RecordMail("queue", err)
	if err != nil {
		return fmt.Errorf("jobs: enqueue mail: %w", err)
	}
	return nil
}

var _ auth.Notifier = (*QueueNotifier)(nil)
