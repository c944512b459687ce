package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/natours/natours/internal/jobs"
)

// ResetTokenPurger removes expired reset tokens.
type ResetTokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenSweepJob clears reset tokens nobody redeemed. Expired tokens are
// already unusable; the sweep keeps the table free of dead secrets.
type ResetTokenSweepJob struct {
	Store   ResetTokenPurger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewResetTokenSweepJob initialises the sweep handler.
func NewResetTokenSweepJob(store ResetTokenPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *ResetTokenSweepJob {
	return &ResetTokenSweepJob{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one sweep.
func (j *ResetTokenSweepJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("reset token sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskResetTokenSweep)
	defer func() { err = tracker.End(err) }()

	n, err := j.Store.PurgeExpiredResetTokens(ctx, j.clock())
	if err != nil {
		return err
	}
	j.Metrics.RecordPurgedResetTokens(n)
	if n > 0 && j.Logger != nil {
		j.Logger.Info("expired reset tokens cleared", slog.Int64("count", n))
	}
	return nil
}
