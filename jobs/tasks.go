package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskResetTokenSweep clears expired password reset tokens.
	TaskResetTokenSweep = "users:reset-token-sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task. Reset links expire quickly, so
// the task is retried a few times within a short deadline only.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Retention(time.Hour),
	), nil
}

// NewResetTokenSweepTask constructs the periodic sweep task.
func NewResetTokenSweepTask() *asynq.Task {
	return asynq.NewTask(TaskResetTokenSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}
