package auth_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/natours/natours/internal/auth"
	"github.com/natours/natours/internal/users/userstest"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type outbox struct {
	mu   sync.Mutex
	sent []auth.Message
	err  error
}

func (o *outbox) Send(ctx context.Context, msg auth.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

// lastToken extracts the plaintext reset token from the newest message.
func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	body := o.sent[len(o.sent)-1].Body
	const marker = "/resetPassword/"
	i := strings.Index(body, marker)
	require.GreaterOrEqual(t, i, 0)
	rest := body[i+len(marker):]
	end := strings.IndexAny(rest, ".\n")
	require.Greater(t, end, 0)
	return rest[:end]
}

type fixture struct {
	clock   *fakeClock
	store   *userstest.Memory
	outbox  *outbox
	service *auth.Service
	authn   *auth.Authenticator
	rejects []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{clock: newClock(), store: userstest.NewMemory(), outbox: &outbox{}}
	f.store.Now = f.clock.Now
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, TTL: 90 * 24 * time.Hour})
	require.NoError(t, err)
	f.service, err = auth.NewService(
		f.store,
		auth.NewBcryptHasher(bcrypt.MinCost, 2),
		tokens,
		auth.NewResetTokens(auth.DefaultResetTTL),
		f.outbox,
		auth.Config{PublicBaseURL: "https://natours.test"},
		auth.WithClock(f.clock.Now),
	)
	require.NoError(t, err)
	f.authn = auth.NewAuthenticator(nil, f.service.Tokens(), f.store, auth.Transport{},
		auth.WithRejectionHook(func(reason string) { f.rejects = append(f.rejects, reason) }))
	return f
}

func (f *fixture) signup(t *testing.T, email, password string) *auth.Session {
	t.Helper()
	session, err := f.service.Signup(context.Background(), auth.SignupInput{
		Name:            "Ann",
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
	})
	require.NoError(t, err)
	return session
}
