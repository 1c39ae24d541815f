// Package auth covers admin and customer sign-in: password and one-time code
// checks, session tokens and Google login.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Role is a user's permission level.
type Role string

// Roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Errors returned by repositories and services. Messages are shown to the
// caller.
var (
	ErrNotFound           = errors.New("user not found")
	ErrExists             = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("Invalid credentials")
	ErrInvalidOTP         = errors.New("Invalid or expired OTP")
	ErrInvalidToken       = errors.New("Invalid Google token.")
	ErrUnauthorized       = errors.New("unauthorized")
)

// User is an account. Admins manage the store; users sign in with Google.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository persists users. Emails are unique and stored lower-case.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindAdmin returns the oldest admin account.
	FindAdmin(ctx context.Context) (*User, error)
	// Create inserts u and assigns its ID and timestamps. Returns ErrExists
	// when the email is taken.
	Create(ctx context.Context, u *User) error
	// UpdateCredentials changes the email and, when passwordHash is not
	// empty, the password of user id.
	UpdateCredentials(ctx context.Context, id, email, passwordHash string) (*User, error)
}

// OTPRepository stores at most one live one-time code per key.
type OTPRepository interface {
	// Put replaces the code stored under key.
	Put(ctx context.Context, key, codeHash string, expiresAt time.Time) error
	// Consume deletes the entry under key if its hash equals codeHash and it
	// has not expired at now. It reports whether an entry was consumed.
	Consume(ctx context.Context, key, codeHash string, now time.Time) (bool, error)
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
