package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and bad claims.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrTokenExpired is returned once a token has reached its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

// TokenConfig is the process-wide signing configuration.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// Claims is the signed token payload. IssuedAtMillis repeats iat at
// millisecond precision for the password freshness check.
type Claims struct {
	UserID         string `json:"id"`
	IssuedAtMillis int64  `json:"iat_ms"`
	jwt.RegisteredClaims
}

// Verified is the outcome of a successful verification.
type Verified struct {
	Subject   uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer mints and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer using the wall clock.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token secret is empty")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &TokenIssuer{secret: secret, ttl: cfg.TTL, now: time.Now}, nil
}

// WithClock returns a copy of the issuer reading time from now.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	cp := *t
	cp.now = now
	return &cp
}

// TTL reports the validity window of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue signs a token for subject. iat and exp carry whole seconds, so exp is
// exactly iat+TTL; iat_ms carries the issue time to the millisecond.
func (t *TokenIssuer) Issue(subject uuid.UUID) (string, time.Time, error) {
	now := t.now().UTC()
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(t.ttl)
	claims := Claims{
		UserID:         subject.String(),
		IssuedAtMillis: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm and time claims of raw.
func (t *TokenIssuer) Verify(raw string) (Verified, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, ErrTokenExpired
		}
		return Verified{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.IssuedAt == nil {
		return Verified{}, fmt.Errorf("%w: missing iat", ErrInvalidToken)
	}
	issuedAt := time.UnixMilli(claims.IssuedAtMillis).UTC()
	if claims.IssuedAtMillis <= 0 || issuedAt.Unix() != claims.IssuedAt.Unix() {
		return Verified{}, fmt.Errorf("%w: iat_ms does not match iat", ErrInvalidToken)
	}
	subject, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Verified{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Verified{
		Subject:   subject,
		IssuedAt:  issuedAt,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
