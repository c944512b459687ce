package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natours/natours/internal/auth"
)

func newIssuer(t *testing.T, clock *fakeClock, ttl time.Duration) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret, TTL: ttl})
	require.NoError(t, err)
	return issuer.WithClock(clock.Now)
}

func TestNewTokenIssuerRejectsBadConfig(t *testing.T) {
	_, err := auth.NewTokenIssuer(auth.TokenConfig{TTL: time.Hour})
	assert.Error(t, err)
	_, err = auth.NewTokenIssuer(auth.TokenConfig{Secret: testSecret})
	assert.Error(t, err)
}

func TestTokenValidityWindow(t *testing.T) {
	clock := newClock()
	clock.Advance(400 * time.Millisecond)
	issuer := newIssuer(t, clock, time.Hour)
	subject := uuid.New()

	token, expiresAt, err := issuer.Issue(subject)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Truncate(time.Second).Add(time.Hour), expiresAt)

	verified, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, subject, verified.Subject)
	assert.True(t, verified.IssuedAt.Equal(clock.Now()), "issue time keeps milliseconds")

	clock.Advance(expiresAt.Sub(clock.Now()) - time.Millisecond)
	_, err = issuer.Verify(token)
	assert.NoError(t, err, "still valid just before expiry")

	clock.Advance(time.Millisecond)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired, "rejected exactly at expiry")

	clock.Advance(24 * time.Hour)
	_, err = issuer.Verify(token)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenRejectsForeignKeysAndGarbage(t *testing.T) {
	clock := newClock()
	issuer := newIssuer(t, clock, time.Hour)
	token, _, err := issuer.Issue(uuid.New())
	require.NoError(t, err)

	other, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte("another-secret-another-secret-!!"), TTL: time.Hour})
	require.NoError(t, err)
	_, err = other.WithClock(clock.Now).Verify(token)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	for _, raw := range []string{"", "garbage", "a.b.c", tampered} {
		_, err := issuer.Verify(raw)
		assert.ErrorIs(t, err, auth.ErrInvalidToken, raw)
	}
}

func TestTokenRejectsUnsignedAndWrongAlgorithm(t *testing.T) {
	clock := newClock()
	issuer := newIssuer(t, clock, time.Hour)
	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(clock.Now()),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Verify(unsigned)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = issuer.Verify(hs512)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenRequiresExpiryAndIssuedAt(t *testing.T) {
	clock := newClock()
	issuer := newIssuer(t, clock, time.Hour)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(clock.Now()),
	}}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = issuer.Verify(noExp)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	noIat, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = issuer.Verify(noIat)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "42",
		IssuedAt:  jwt.NewNumericDate(clock.Now()),
		ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
	}}).SignedString(testSecret)
	require.NoError(t, err)
	_, err = issuer.Verify(badSubject)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestTokenRequiresConsistentMillisecondIssueTime(t *testing.T) {
	clock := newClock()
	clock.Advance(250 * time.Millisecond)
	issuer := newIssuer(t, clock, time.Hour)
	sign := func(millis int64) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
			IssuedAtMillis: millis,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(clock.Now()),
				ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
			},
		}).SignedString(testSecret)
		require.NoError(t, err)
		return raw
	}

	verified, err := issuer.Verify(sign(clock.Now().UnixMilli()))
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UnixMilli(), verified.IssuedAt.UnixMilli())

	_, err = issuer.Verify(sign(0))
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "missing iat_ms")

	_, err = issuer.Verify(sign(clock.Now().Add(-2 * time.Second).UnixMilli()))
	assert.ErrorIs(t, err, auth.ErrInvalidToken, "iat_ms from another second")
}
