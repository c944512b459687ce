package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/natours/natours/internal/platform/httpx"
	"github.com/natours/natours/internal/shared"
	"github.com/natours/natours/internal/users"
)

// SubjectLoader resolves the subject of a verified token.
type SubjectLoader interface {
	FindByID(ctx context.Context, id uuid.UUID, opts ...users.FindOption) (*users.User, error)
}

// Authenticator runs the per-request authentication chain: extract the
// token, verify it, load the subject and check password freshness.
type Authenticator struct {
	tokens       *TokenIssuer
	subjects     SubjectLoader
	transport    Transport
	logger       *slog.Logger
	storeTimeout time.Duration
	onReject     func(reason string)
}

// AuthenticatorOption customises an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithRejectionHook registers fn to be called with the reason of every
// rejected request.
func WithRejectionHook(fn func(reason string)) AuthenticatorOption {
	return func(a *Authenticator) { a.onReject = fn }
}

// WithStoreTimeout bounds the subject lookup.
func WithStoreTimeout(d time.Duration) AuthenticatorOption {
	return func(a *Authenticator) { a.storeTimeout = d }
}

// NewAuthenticator builds the chain.
func NewAuthenticator(logger *slog.Logger, tokens *TokenIssuer, subjects SubjectLoader, transport Transport, opts ...AuthenticatorOption) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Authenticator{tokens: tokens, subjects: subjects, transport: transport, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Protect admits only requests carrying a valid token for an active subject
// whose password has not changed since the token was issued. The subject is
// attached to the request context.
func (a *Authenticator) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Authenticate(r)
		if err != nil {
			a.Reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(users.ContextWithUser(r.Context(), user)))
	})
}

// Authenticate resolves the caller of r or returns a classified error.
func (a *Authenticator) Authenticate(r *http.Request) (*users.User, error) {
	raw := a.transport.Extract(r)
	if raw == "" {
		return nil, shared.Authentication(shared.ReasonNoToken, "You are not logged in! Please log in to get access.")
	}
	verified, err := a.tokens.Verify(raw)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, shared.Authentication(shared.ReasonInvalidToken, "Your token has expired! Please log in again.")
		}
		return nil, shared.Authentication(shared.ReasonInvalidToken, "Invalid token. Please log in again!")
	}

	ctx, cancel := boundContext(r.Context(), a.storeTimeout)
	defer cancel()
	user, err := a.subjects.FindByID(ctx, verified.Subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.Authentication(shared.ReasonSubjectGone, "The user belonging to this token does no longer exist.")
		}
		return nil, shared.Internal(err)
	}
	if user.ChangedPasswordAfter(verified.IssuedAt) {
		return nil, shared.Authentication(shared.ReasonPasswordChanged, "User recently changed password! Please log in again.")
	}
	return user, nil
}

// Reject records and writes the error response for a refused request.
func (a *Authenticator) Reject(w http.ResponseWriter, r *http.Request, err error) {
	if a.onReject != nil {
		reason := shared.ReasonOf(err)
		if reason == "" {
			reason = "internal"
		}
		a.onReject(reason)
	}
	httpx.RespondError(w, r, a.logger, err)
}

func boundContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
