package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Role is an authorization tier attached to a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
)

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleGuide, RoleLeadGuide}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleGuide, RoleLeadGuide:
		return true
	}
	return false
}

// User is the canonical credential record. Secret and lifecycle fields are
// never serialized.
type User struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Photo     string    `json:"photo,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	PasswordHash         string     `json:"-"`
	Active               bool       `json:"-"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   *string    `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at issuedAt, at millisecond resolution. PasswordChangedAt is written
// backdated by at least a millisecond, so a token stamped at or before it
// predates the change and one minted alongside the change is newer.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u == nil || u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.UnixMilli() >= issuedAt.UnixMilli()
}

// HasResetToken reports whether a reset token is staged.
func (u *User) HasResetToken() bool {
	return u != nil && u.PasswordResetToken != nil && u.PasswordResetExpires != nil
}

// NewUser carries the fields required to create a record.
type NewUser struct {
	Name         string
	Email        string
	Photo        string
	Role         Role
	PasswordHash string
}

// Changes lists the mutable profile fields. Nil means unchanged.
type Changes struct {
	Name  *string
	Email *string
	Photo *string
	Role  *Role
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Email == nil && c.Photo == nil && c.Role == nil
}

// FindOptions tunes read queries.
type FindOptions struct {
	WithPassword    bool
	IncludeInactive bool
	// Limit caps List results when positive; Offset skips leading records.
	Limit  int
	Offset int
}

// FindOption mutates FindOptions.
type FindOption func(*FindOptions)

// WithPassword selects the hidden password hash column.
func WithPassword() FindOption {
	return func(o *FindOptions) { o.WithPassword = true }
}

// IncludeInactive lifts the default filter on deactivated records.
func IncludeInactive() FindOption {
	return func(o *FindOptions) { o.IncludeInactive = true }
}

// Window restricts List to limit records after skipping offset.
func Window(offset, limit int) FindOption {
	return func(o *FindOptions) { o.Offset, o.Limit = offset, limit }
}

// ApplyFindOptions folds opts into a FindOptions value.
func ApplyFindOptions(opts ...FindOption) FindOptions {
	var o FindOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// NormalizeEmail trims, NFKC-normalizes and lower-cases an address.
func NormalizeEmail(email string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Lower(language.Und).String(norm.NFKC.String(strings.TrimSpace(email)))
}
