package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furniture-store/internal/domain/auth"
)

var (
	_ auth.UserRepository = (*UserRepository)(nil)
	_ auth.OTPRepository  = (*OTPRepository)(nil)
)

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

const (
	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	getAdminSQL = `SELECT ` + userColumns + ` FROM users WHERE role = 'admin'
	ORDER BY created_at LIMIT 1`

	insertUserSQL = `INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $6)`

	updateCredentialsSQL = `UPDATE users SET
	email = $2,
	password_hash = CASE WHEN $3 = '' THEN password_hash ELSE $3 END,
	updated_at = $4
	WHERE id = $1
	RETURNING ` + userColumns

	putOTPSQL = `INSERT INTO admin_otps (key, code_hash, expires_at) VALUES ($1, $2, $3)
	ON CONFLICT (key) DO UPDATE SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at`

	consumeOTPSQL = `DELETE FROM admin_otps WHERE key = $1 AND code_hash = $2 AND expires_at > $3`
)

// UserRepository implements auth.UserRepository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool, now: time.Now}
}

// FindByEmail returns the user with the given normalized email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

// FindAdmin returns the oldest admin account.
func (r *UserRepository) FindAdmin(ctx context.Context) (*auth.User, error) {
	return r.getOne(ctx, getAdminSQL)
}

func (r *UserRepository) getOne(ctx context.Context, query string, args ...any) (*auth.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return &u, nil
}

// Create stores a new user. Returns auth.ErrExists when the email is taken.
func (r *UserRepository) Create(ctx context.Context, u *auth.User) error {
	u.ID = uuid.NewString()
	u.Email = auth.NormalizeEmail(u.Email)
	u.CreatedAt = r.now().UTC()
	u.UpdatedAt = u.CreatedAt

	_, err := r.pool.Exec(ctx, insertUserSQL, u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
	if err != nil {
		if uniqueViolationOn(err, "users_email_key") {
			return auth.ErrExists
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// UpdateCredentials changes the email and, when passwordHash is set, the
// password of a user.
func (r *UserRepository) UpdateCredentials(ctx context.Context, id, email, passwordHash string) (*auth.User, error) {
	rows, err := r.pool.Query(ctx, updateCredentialsSQL, id, auth.NormalizeEmail(email), passwordHash, r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("updating user %q: %w", id, err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		if uniqueViolationOn(err, "users_email_key") {
			return nil, auth.ErrExists
		}
		return nil, fmt.Errorf("updating user %q: %w", id, err)
	}
	return &u, nil
}

func scanUser(row pgx.CollectableRow) (auth.User, error) {
	var (
		u    auth.User
		role string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	u.Role = auth.Role(role)
	return u, err
}

// OTPRepository implements auth.OTPRepository backed by PostgreSQL.
type OTPRepository struct {
	pool *pgxpool.Pool
}

// NewOTPRepository returns an OTPRepository that uses the given pool.
func NewOTPRepository(pool *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{pool: pool}
}

// Put replaces the code stored under key.
func (r *OTPRepository) Put(ctx context.Context, key, codeHash string, expiresAt time.Time) error {
	if _, err := r.pool.Exec(ctx, putOTPSQL, key, codeHash, expiresAt); err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	return nil
}

// Consume deletes a matching, unexpired entry.
func (r *OTPRepository) Consume(ctx context.Context, key, codeHash string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, consumeOTPSQL, key, codeHash, now)
	if err != nil {
		return false, fmt.Errorf("consuming otp: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
