package auth

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 12

// PasswordHasher derives and checks password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Verify(ctx context.Context, plain, hash string) bool
}

// BcryptHasher hashes passwords with bcrypt. Concurrent hash operations are
// bounded by a weighted semaphore so a burst of logins cannot starve other
// request handling of CPU.
type BcryptHasher struct {
	cost  int
	slots *semaphore.Weighted
}

// NewBcryptHasher builds a hasher. Non-positive values fall back to defaults.
func NewBcryptHasher(cost, concurrency int) *BcryptHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &BcryptHasher{cost: cost, slots: semaphore.NewWeighted(int64(concurrency))}
}

// Hash returns a salted bcrypt hash of plain.
func (h *BcryptHasher) Hash(ctx context.Context, plain string) (string, error) {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("auth: hash slot: %w", err)
	}
	defer h.slots.Release(1)
	out, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plain matches hash. Any failure, including a
// malformed hash or a cancelled context, yields false.
func (h *BcryptHasher) Verify(ctx context.Context, plain, hash string) bool {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.slots.Release(1)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
