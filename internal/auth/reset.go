package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// DefaultResetTTL is how long a password reset token stays valid.
const DefaultResetTTL = 10 * time.Minute

const resetTokenBytes = 32

// ResetToken is a freshly generated reset secret. Plain is delivered to the
// user; only Hash is persisted.
type ResetToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

// ResetTokens generates password reset secrets.
type ResetTokens struct {
	ttl time.Duration
	now func() time.Time
}

// NewResetTokens returns a generator with the given validity window.
func NewResetTokens(ttl time.Duration) *ResetTokens {
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetTokens{ttl: ttl, now: time.Now}
}

// TTL reports the validity window.
func (r *ResetTokens) TTL() time.Duration {
	return r.ttl
}

// Generate returns a new 256-bit secret with its stored hash and expiry.
func (r *ResetTokens) Generate() (ResetToken, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("auth: reset token entropy: %w", err)
	}
	plain := hex.EncodeToString(buf)
	return ResetToken{
		Plain:     plain,
		Hash:      HashResetToken(plain),
		ExpiresAt: r.now().UTC().Add(r.ttl),
	}, nil
}

// HashResetToken derives the stored form of a plaintext reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
