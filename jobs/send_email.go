package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/natours/natours/internal/jobs"
	"github.com/natours/natours/internal/mail"
)

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// SendEmailJob delivers queued mail:send tasks.
type SendEmailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSendEmailJob initialises the mail handler.
func NewSendEmailJob(mailer Mailer, logger *slog.Logger, metrics *jobmetrics.Metrics) *SendEmailJob {
	return &SendEmailJob{Mailer: mailer, Logger: logger, Metrics: metrics}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *SendEmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("send email: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeSendEmail)
	defer func() { err = tracker.End(err) }()

	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("send email: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("send email: empty recipient: %w", asynq.SkipRetry)
	}
	if err := j.Mailer.Send(ctx, mail.Message(payload)); err != nil {
		j.logger().Warn("send email failed", slog.String("subject", payload.Subject), slog.Any("error", err))
		return err
	}
	j.logger().Info("email sent", slog.String("subject", payload.Subject))
	return nil
}

func (j *SendEmailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}
