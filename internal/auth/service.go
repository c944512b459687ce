package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/natours/natours/internal/shared"
	"github.com/natours/natours/internal/users"
)

// DefaultPasswordChangeSkew backdates password change timestamps so a token
// minted right after the change is never considered stale. It is also the
// smallest accepted skew, the resolution of token issue times.
const DefaultPasswordChangeSkew = time.Millisecond

const resetPath = "/api/v1/users/resetPassword/"

// SignupInput is the body accepted by signup. Any role sent by the caller is
// ignored; new accounts always start as standard users.
type SignupInput struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Photo           string `json:"photo" validate:"omitempty,max=255"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// LoginInput is the body accepted by login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordInput is the body accepted by forgot-password.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordInput is the body accepted by reset-password.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordInput is the body accepted by update-password.
type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// Session is a freshly issued token for a user.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *users.User
}

// Config holds the tunables of Service.
type Config struct {
	PasswordChangeSkew time.Duration
	StoreTimeout       time.Duration
	MailTimeout        time.Duration
	PublicBaseURL      string
}

// Service implements the credential lifecycle.
type Service struct {
	repo     users.Repository
	hasher   PasswordHasher
	tokens   *TokenIssuer
	resets   *ResetTokens
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	// placeholder is compared against when the login email is unknown, so
	// both login failures cost one bcrypt comparison at the configured cost.
	placeholder string
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithClock makes the service, its token issuer and reset generator read
// time from now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
		s.tokens = s.tokens.WithClock(now)
		resets := *s.resets
		resets.now = now
		s.resets = &resets
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService wires the credential lifecycle. It hashes the login placeholder
// up front and fails when the hasher cannot.
func NewService(repo users.Repository, hasher PasswordHasher, tokens *TokenIssuer, resets *ResetTokens, notifier Notifier, cfg Config, opts ...ServiceOption) (*Service, error) {
	if cfg.PasswordChangeSkew < DefaultPasswordChangeSkew {
		cfg.PasswordChangeSkew = DefaultPasswordChangeSkew
	}
	if resets == nil {
		resets = NewResetTokens(DefaultResetTTL)
	}
	s := &Service{
		repo:     repo,
		hasher:   hasher,
		tokens:   tokens,
		resets:   resets,
		notifier: notifier,
		cfg:      cfg,
		logger:   slog.Default(),
		validate: shared.NewValidator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	placeholder, err := hasher.Hash(context.Background(), "natours-placeholder-password")
	if err != nil {
		return nil, fmt.Errorf("auth: placeholder hash: %w", err)
	}
	s.placeholder = placeholder
	return s, nil
}

// Tokens exposes the issuer used by the service.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Signup creates a standard user and logs them in.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.ValidationFailure(err)
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, shared.Internal(err)
	}
	sctx, cancel := boundContext(ctx, s.cfg.StoreTimeout)
	defer cancel()
	user, err := s.repo.Create(sctx, users.NewUser{
		Name:         in.Name,
		Email:        in.Email,
		Photo:        in.Photo,
		Role:         users.RoleUser,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			return nil, shared.Validation(shared.ReasonDuplicate, "Duplicate field value: email. Please use another value.")
		}
		return nil, shared.Internal(err)
	}
	return s.issue(user)
}

// Login checks credentials. Unknown email and wrong password fail the same
// way and cost the same bcrypt comparison.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, shared.Validation(shared.ReasonInvalidInput, "Please provide email and password!")
	}
	sctx, cancel := boundContext(ctx, s.cfg.StoreTimeout)
	defer cancel()
	user, err := s.repo.FindByEmail(sctx, in.Email, users.WithPassword())
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, shared.Internal(err)
	}
	if user == nil {
		s.hasher.Verify(ctx, in.Password, s.placeholder)
		return nil, badCredentials()
	}
	if !s.hasher.Verify(ctx, in.Password, user.PasswordHash) {
		return nil, badCredentials()
	}
	user.PasswordHash = ""
	return s.issue(user)
}

// ForgotPassword stages a reset token for the account behind email and
// delivers it. When delivery fails the staged token is withdrawn so it can
// never be consumed. baseURL is used when no public base URL is configured.
func (s *Service) ForgotPassword(ctx context.Context, in ForgotPasswordInput, baseURL string) error {
	if err := s.validate.Struct(in); err != nil {
		return shared.ValidationFailure(err)
	}
	sctx, cancel := boundContext(ctx, s.cfg.StoreTimeout)
	defer cancel()
	user, err := s.repo.FindByEmail(sctx, in.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound(shared.ReasonNotFound, "There is no user with email address.")
		}
		return shared.Internal(err)
	}

	token, err := s.resets.Generate()
	if err != nil {
		return shared.Internal(err)
	}
	if err := s.repo.StageResetToken(sctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound(shared.ReasonNotFound, "There is no user with email address.")
		}
		return shared.Internal(err)
	}

	if err := s.deliverReset(ctx, user, token, baseURL); err != nil {
		s.withdrawReset(ctx, user, token)
		return shared.Dependency(shared.ReasonDelivery, "There was an error sending the email. Try again later!", err)
	}
	return nil
}

func (s *Service) deliverReset(ctx context.Context, user *users.User, token ResetToken, baseURL string) error {
	if s.notifier == nil {
		return errors.New("auth: no notifier configured")
	}
	if s.cfg.PublicBaseURL != "" {
		baseURL = s.cfg.PublicBaseURL
	}
	link := strings.TrimRight(baseURL, "/") + resetPath + token.Plain
	msg := Message{
		To:      user.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %d min)", int(s.resets.TTL().Minutes())),
		Body: "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: " +
			link + ".\nIf you didn't forget your password, please ignore this email!",
	}
	mctx, cancel := boundContext(ctx, s.cfg.MailTimeout)
	defer cancel()
	return s.notifier.Send(mctx, msg)
}

// withdrawReset clears a staged token after a failed delivery. It runs even
// if the request context is already done.
func (s *Service) withdrawReset(ctx context.Context, user *users.User, token ResetToken) {
	cctx, cancel := boundContext(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()
	if err := s.repo.ClearResetToken(cctx, user.ID, token.Hash); err != nil {
		s.logger.Error("withdraw reset token", slog.String("user_id", user.ID.String()), slog.Any("error", err))
	}
}

// ResetPassword consumes a reset token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, plainToken string, in ResetPasswordInput) (*Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.ValidationFailure(err)
	}
	if plainToken == "" {
		return nil, invalidResetToken()
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, shared.Internal(err)
	}
	now := s.now().UTC()
	sctx, cancel := boundContext(ctx, s.cfg.StoreTimeout)
	defer cancel()
	user, err := s.repo.ConsumeResetToken(sctx, HashResetToken(plainToken), now, hash, now.Add(-s.cfg.PasswordChangeSkew))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, shared.Internal(err)
	}
	return s.issue(user)
}

// UpdatePassword changes the password of an authenticated user after
// re-checking their current password.
func (s *Service) UpdatePassword(ctx context.Context, current *users.User, in UpdatePasswordInput) (*Session, error) {
	if current == nil {
		return nil, shared.Authentication(shared.ReasonNoToken, "You are not logged in! Please log in to get access.")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.ValidationFailure(err)
	}
	sctx, cancel := boundContext(ctx, s.cfg.StoreTimeout)
	defer cancel()
	user, err := s.repo.FindByID(sctx, current.ID, users.WithPassword())
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.Authentication(shared.ReasonSubjectGone, "The user belonging to this token does no longer exist.")
		}
		return nil, shared.Internal(err)
	}
	if !s.hasher.Verify(ctx, in.PasswordCurrent, user.PasswordHash) {
		return nil, shared.Authentication(shared.ReasonWrongPassword, "Your current password is wrong.")
	}
	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, shared.Internal(err)
	}
	changedAt := s.now().UTC().Add(-s.cfg.PasswordChangeSkew)
	if err := s.repo.SetPassword(sctx, user.ID, hash, changedAt); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.Authentication(shared.ReasonSubjectGone, "The user belonging to this token does no longer exist.")
		}
		return nil, shared.Internal(err)
	}
	user.PasswordHash = ""
	user.PasswordChangedAt = &changedAt
	return s.issue(user)
}

func (s *Service) issue(user *users.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, shared.Internal(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func badCredentials() error {
	return shared.Authentication(shared.ReasonBadCredentials, "Incorrect email or password")
}

func invalidResetToken() error {
	return shared.NotFound(shared.ReasonResetToken, "Token is invalid or has expired")
}
