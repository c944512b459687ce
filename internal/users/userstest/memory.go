// Package userstest provides an in-memory users.Repository for tests.
package userstest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/natours/natours/internal/shared"
	"github.com/natours/natours/internal/users"
)

// Memory is a mutex-guarded users.Repository. Each method is atomic with
// respect to the others, mirroring single-statement updates in Postgres.
type Memory struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*users.User
	Now     func() time.Time
	Calls   int
	FailErr error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[uuid.UUID]*users.User), Now: time.Now}
}

// Put inserts a record as-is, bypassing validation.
func (m *Memory) Put(u users.User) *users.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = users.NormalizeEmail(u.Email)
	stored := u
	m.byID[u.ID] = &stored
	out := stored
	return &out
}

// Snapshot returns a copy of the stored record including hidden fields.
func (m *Memory) Snapshot(id uuid.UUID) (users.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return users.User{}, false
	}
	return *u, true
}

func (m *Memory) enter() error {
	m.Calls++
	return m.FailErr
}

func (m *Memory) Create(ctx context.Context, nu users.NewUser) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	email := users.NormalizeEmail(nu.Email)
	for _, u := range m.byID {
		if u.Email == email {
			return nil, shared.ErrDuplicate
		}
	}
	role := nu.Role
	if role == "" {
		role = users.RoleUser
	}
	now := m.Now().UTC()
	u := &users.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(nu.Name),
		Email:        email,
		Photo:        nu.Photo,
		Role:         role,
		PasswordHash: nu.PasswordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.byID[u.ID] = u
	return public(u), nil
}

func (m *Memory) FindByID(ctx context.Context, id uuid.UUID, opts ...users.FindOption) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	o := users.ApplyFindOptions(opts...)
	u, ok := m.byID[id]
	if !ok || (!u.Active && !o.IncludeInactive) {
		return nil, shared.ErrNotFound
	}
	return project(u, o), nil
}

func (m *Memory) FindByEmail(ctx context.Context, email string, opts ...users.FindOption) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	o := users.ApplyFindOptions(opts...)
	email = users.NormalizeEmail(email)
	for _, u := range m.byID {
		if u.Email == email && (u.Active || o.IncludeInactive) {
			return project(u, o), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *Memory) List(ctx context.Context, opts ...users.FindOption) ([]users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	o := users.ApplyFindOptions(opts...)
	out := make([]users.User, 0, len(m.byID))
	for _, u := range m.byID {
		if u.Active || o.IncludeInactive {
			out = append(out, *project(u, o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if o.Offset > 0 {
		out = out[min(o.Offset, len(out)):]
	}
	if o.Limit > 0 && o.Limit < len(out) {
		out = out[:o.Limit]
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, opts ...users.FindOption) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return 0, err
	}
	o := users.ApplyFindOptions(opts...)
	n := 0
	for _, u := range m.byID {
		if u.Active || o.IncludeInactive {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, c users.Changes) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return nil, shared.ErrNotFound
	}
	if c.Email != nil {
		email := users.NormalizeEmail(*c.Email)
		for other, ou := range m.byID {
			if other != id && ou.Email == email {
				return nil, shared.ErrDuplicate
			}
		}
		u.Email = email
	}
	if c.Name != nil {
		u.Name = strings.TrimSpace(*c.Name)
	}
	if c.Photo != nil {
		u.Photo = *c.Photo
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
	u.UpdatedAt = m.Now().UTC()
	return public(u), nil
}

func (m *Memory) SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return shared.ErrNotFound
	}
	setPassword(u, hash, changedAt)
	return nil
}

func (m *Memory) StageResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	u, ok := m.byID[id]
	if !ok || !u.Active {
		return shared.ErrNotFound
	}
	h, exp := tokenHash, expiresAt
	u.PasswordResetToken, u.PasswordResetExpires = &h, &exp
	return nil
}

func (m *Memory) ClearResetToken(ctx context.Context, id uuid.UUID, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	u, ok := m.byID[id]
	if !ok || u.PasswordResetToken == nil || *u.PasswordResetToken != tokenHash {
		return nil
	}
	u.PasswordResetToken, u.PasswordResetExpires = nil, nil
	return nil
}

func (m *Memory) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newHash string, changedAt time.Time) (*users.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	for _, u := range m.byID {
		if !u.Active || u.PasswordResetToken == nil || *u.PasswordResetToken != tokenHash {
			continue
		}
		if u.PasswordResetExpires == nil || !u.PasswordResetExpires.After(now) {
			return nil, shared.ErrNotFound
		}
		setPassword(u, newHash, changedAt)
		return public(u), nil
	}
	return nil, shared.ErrNotFound
}

func (m *Memory) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	u, ok := m.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Active = active
	return nil
}

func (m *Memory) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return 0, err
	}
	var n int64
	for _, u := range m.byID {
		if u.PasswordResetExpires != nil && !u.PasswordResetExpires.After(now) {
			u.PasswordResetToken, u.PasswordResetExpires = nil, nil
			n++
		}
	}
	return n, nil
}

func setPassword(u *users.User, hash string, changedAt time.Time) {
	u.PasswordHash = hash
	if u.PasswordChangedAt == nil || changedAt.After(*u.PasswordChangedAt) {
		at := changedAt
		u.PasswordChangedAt = &at
	}
	u.PasswordResetToken, u.PasswordResetExpires = nil, nil
}

func project(u *users.User, o users.FindOptions) *users.User {
	out := *u
	if !o.WithPassword {
		out.PasswordHash = ""
	}
	return &out
}

func public(u *users.User) *users.User {
	return project(u, users.FindOptions{})
}

var _ users.Repository = (*Memory)(nil)
