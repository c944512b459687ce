package users

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the credential store. Implementations must apply every
// mutation of a single record atomically.
type Repository interface {
	Create(ctx context.Context, u NewUser) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID, opts ...FindOption) (*User, error)
	FindByEmail(ctx context.Context, email string, opts ...FindOption) (*User, error)
	List(ctx context.Context, opts ...FindOption) ([]User, error)
	// Count reports how many records List would return without a window.
	Count(ctx context.Context, opts ...FindOption) (int, error)
	Update(ctx context.Context, id uuid.UUID, changes Changes) (*User, error)
	// SetPassword stores a new hash, advances password_changed_at and clears
	// any staged reset token.
	SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error
	StageResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error
	// ClearResetToken unsets both reset fields if they still hold tokenHash.
	ClearResetToken(ctx context.Context, id uuid.UUID, tokenHash string) error
	// ConsumeResetToken finds the active record holding tokenHash with an
	// expiry after now, sets the new password and clears the reset fields in
	// one step. Returns shared.ErrNotFound when nothing matched.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newHash string, changedAt time.Time) (*User, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// PurgeExpiredResetTokens clears reset fields whose expiry is at or
	// before now and reports how many records changed.
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
