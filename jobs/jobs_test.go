package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours/internal/auth"
	jobmetrics "github.com/natours/natours/internal/jobs"
	"github.com/natours/natours/internal/mail"
	"github.com/natours/natours/internal/users"
	"github.com/natours/natours/internal/users/userstest"
)

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestSendEmailJobDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	job := NewSendEmailJob(mailer, nil, newTestMetrics())
	task, err := NewSendEmailTask(SendEmailPayload{To: "ann@x.com", Subject: "hi", Body: "body"})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []mail.Message{{To: "ann@x.com", Subject: "hi", Body: "body"}}, mailer.sent)
}

func TestSendEmailJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewSendEmailJob(&fakeMailer{}, nil, newTestMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	empty, _ := json.Marshal(SendEmailPayload{Subject: "hi"})
	err = job.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, empty))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSendEmailJobReturnsDeliveryError(t *testing.T) {
	boom := errors.New("421 try later")
	job := NewSendEmailJob(&fakeMailer{err: boom}, nil, newTestMetrics())
	task, err := NewSendEmailTask(SendEmailPayload{To: "ann@x.com"})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestResetTokenSweepJob(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := userstest.NewMemory()
	stale := store.Put(users.User{Email: "a@x.com", Active: true})
	fresh := store.Put(users.User{Email: "b@x.com", Active: true})
	ctx := context.Background()
	require.NoError(t, store.StageResetToken(ctx, stale.ID, "h1", now.Add(-time.Minute)))
	require.NoError(t, store.StageResetToken(ctx, fresh.ID, "h2", now.Add(time.Minute)))

	job := NewResetTokenSweepJob(store, nil, newTestMetrics())
	job.clock = func() time.Time { return now }
	require.NoError(t, job.Handle(ctx, NewResetTokenSweepTask()))

	got, _ := store.Snapshot(stale.ID)
	assert.False(t, got.HasResetToken())
	got, _ = store.Snapshot(fresh.ID)
	assert.True(t, got.HasResetToken())
}

type fakeEnqueuer struct {
	payloads []SendEmailPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.payloads = append(f.payloads, payload)
	return &asynq.TaskInfo{ID: "1", Queue: QueueDefault, Type: TaskTypeSendEmail}, nil
}

func TestQueueNotifier(t *testing.T) {
	queue := &fakeEnqueuer{}
	notifier := NewQueueNotifier(queue, newTestMetrics())

	require.NoError(t, notifier.Send(context.Background(), auth.Message{To: "ann@x.com", Subject: "s", Body: "b"}))
	assert.Equal(t, []SendEmailPayload{{To: "ann@x.com", Subject: "s", Body: "b"}}, queue.payloads)

	queue.err = errors.New("redis: connection refused")
	err := notifier.Send(context.Background(), auth.Message{To: "ann@x.com"})
	assert.ErrorIs(t, err, queue.err)
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func TestJobsHealth(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		code      int
		body      string
	}{
		{"no inspector", nil, http.StatusOK,
			`{"queue":"default","pending":0,"active":0,"retry":0,"archived":0,"paused":false,"latencyMs":0}`},
		{"backlog", fakeInspector{info: &asynq.QueueInfo{Queue: "default", Pending: 4, Retry: 1, Latency: 1500 * time.Millisecond}}, http.StatusOK,
			`{"queue":"default","pending":4,"active":0,"retry":1,"archived":0,"paused":false,"latencyMs":1500}`},
		{"redis down", fakeInspector{err: errors.New("dial tcp")}, http.StatusServiceUnavailable,
			`{"status":"error","message":"Job queue unavailable"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHandler(tc.inspector, nil).MountRoutes(r)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tc.code, rr.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, rr.Body.String())
			}
		})
	}
}

func TestNewWorkerRequiresHandlers(t *testing.T) {
	_, err := NewWorker(WorkerConfig{})
	assert.Error(t, err)

	_, err = NewWorker(WorkerConfig{Handlers: []TaskHandler{{Type: TaskTypeSendEmail}}})
	assert.Error(t, err)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 10*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 30*time.Second, retryDelay(2, nil, nil))
	assert.Equal(t, time.Minute, retryDelay(9, nil, nil))
}
