package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/natours/natours/internal/shared"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and test doubles.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const publicColumns = `id, name, email, photo, role, active, password_changed_at, password_reset_token, password_reset_expires, created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db  DBTX
	now func() time.Time
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(db DBTX) *PGRepository {
	return &PGRepository{db: db, now: time.Now}
}

// Create inserts a new active user.
func (r *PGRepository) Create(ctx context.Context, u NewUser) (*User, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("users: new id: %w", err)
	}
	role := u.Role
	if role == "" {
		role = RoleUser
	}
	now := r.now().UTC()
	row := r.db.QueryRow(ctx,
		`INSERT INTO users (id, name, email, photo, role, password_hash, active, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, TRUE, $7, $7)
		 RETURNING `+publicColumns,
		id, strings.TrimSpace(u.Name), NormalizeEmail(u.Email), u.Photo, string(role), u.PasswordHash, now)
	user, err := scanUser(row, false)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return user, nil
}

// FindByID fetches a user by id.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID, opts ...FindOption) (*User, error) {
	o := ApplyFindOptions(opts...)
	query := `SELECT ` + selectColumns(o) + ` FROM users WHERE id = $1`
	if !o.IncludeInactive {
		query += ` AND active`
	}
	return r.findOne(ctx, o, query, id)
}

// FindByEmail fetches a user by normalized email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string, opts ...FindOption) (*User, error) {
	o := ApplyFindOptions(opts...)
	query := `SELECT ` + selectColumns(o) + ` FROM users WHERE lower(email) = $1`
	if !o.IncludeInactive {
		query += ` AND active`
	}
	return r.findOne(ctx, o, query, NormalizeEmail(email))
}

// List returns users ordered by creation time.
func (r *PGRepository) List(ctx context.Context, opts ...FindOption) ([]User, error) {
	o := ApplyFindOptions(opts...)
	query := `SELECT ` + selectColumns(o) + ` FROM users`
	if !o.IncludeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at, id`
	var args []any
	if o.Limit > 0 {
		query += ` LIMIT $1 OFFSET $2`
		args = append(args, o.Limit, o.Offset)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows, o.WithPassword)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of users List would return.
func (r *PGRepository) Count(ctx context.Context, opts ...FindOption) (int, error) {
	o := ApplyFindOptions(opts...)
	query := `SELECT count(*) FROM users`
	if !o.IncludeInactive {
		query += ` WHERE active`
	}
	var n int
	if err := r.db.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Update applies profile changes to an active user.
func (r *PGRepository) Update(ctx context.Context, id uuid.UUID, changes Changes) (*User, error) {
	sets := make([]string, 0, 5)
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}
	if changes.Name != nil {
		add("name", strings.TrimSpace(*changes.Name))
	}
	if changes.Email != nil {
		add("email", NormalizeEmail(*changes.Email))
	}
	if changes.Photo != nil {
		add("photo", nullIfEmpty(*changes.Photo))
	}
	if changes.Role != nil {
		add("role", string(*changes.Role))
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}
	add("updated_at", r.now().UTC())
	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 AND active RETURNING ` + publicColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, args...), false)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return user, nil
}

// SetPassword stores a new hash and clears any staged reset token.
func (r *PGRepository) SetPassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2,
		     password_changed_at = GREATEST(COALESCE(password_changed_at, $3), $3),
		     password_reset_token = NULL,
		     password_reset_expires = NULL,
		     updated_at = $4
		 WHERE id = $1 AND active`,
		id, hash, changedAt.UTC(), r.now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// StageResetToken stores the hash and expiry of a freshly issued reset token.
func (r *PGRepository) StageResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_reset_token = $2, password_reset_expires = $3, updated_at = $4
		 WHERE id = $1 AND active`,
		id, tokenHash, expiresAt.UTC(), r.now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ClearResetToken unsets the reset fields when they still hold tokenHash.
func (r *PGRepository) ClearResetToken(ctx context.Context, id uuid.UUID, tokenHash string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET password_reset_token = NULL, password_reset_expires = NULL, updated_at = $3
		 WHERE id = $1 AND password_reset_token = $2`,
		id, tokenHash, r.now().UTC())
	return err
}

// PurgeExpiredResetTokens clears stale reset tokens in bulk.
func (r *PGRepository) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_reset_token = NULL, password_reset_expires = NULL, updated_at = $1
		 WHERE password_reset_expires <= $1`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ConsumeResetToken redeems a reset token and sets the new password atomically.
func (r *PGRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newHash string, changedAt time.Time) (*User, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE users
		 SET password_hash = $3,
		     password_changed_at = GREATEST(COALESCE(password_changed_at, $4), $4),
		     password_reset_token = NULL,
		     password_reset_expires = NULL,
		     updated_at = $2
		 WHERE password_reset_token = $1 AND password_reset_expires > $2 AND active
		 RETURNING `+publicColumns,
		tokenHash, now.UTC(), newHash, changedAt.UTC())
	user, err := scanUser(row, false)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// SetActive flips the soft-delete flag.
func (r *PGRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET active = $2, updated_at = $3 WHERE id = $1`,
		id, active, r.now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *PGRepository) findOne(ctx context.Context, o FindOptions, query string, arg any) (*User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg), o.WithPassword)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func selectColumns(o FindOptions) string {
	if o.WithPassword {
		return publicColumns + `, password_hash`
	}
	return publicColumns
}

func scanUser(row pgx.Row, withPassword bool) (*User, error) {
	var (
		user  User
		photo *string
		role  string
	)
	dest := []any{
		&user.ID, &user.Name, &user.Email, &photo, &role, &user.Active,
		&user.PasswordChangedAt, &user.PasswordResetToken, &user.PasswordResetExpires,
		&user.CreatedAt, &user.UpdatedAt,
	}
	if withPassword {
		dest = append(dest, &user.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if photo != nil {
		user.Photo = *photo
	}
	user.Role = Role(role)
	return &user, nil
}

func mapWriteError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return fmt.Errorf("users: %s: %w", pgErr.ConstraintName, shared.ErrDuplicate)
	}
	return err
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Repository = (*PGRepository)(nil)
