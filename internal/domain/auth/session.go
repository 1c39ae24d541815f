package auth

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Session lifetimes.
const (
	AdminSessionTTL = 24 * time.Hour
	UserSessionTTL  = 7 * 24 * time.Hour
)

// Claims is the payload of a session token.
type Claims struct {
	UserID string `json:"id,omitempty"`
	Role   Role   `json:"role"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Session is a signed token and its expiry.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	now    func() time.Time
}

// NewSessions creates Sessions signing with secret.
func NewSessions(secret string) *Sessions {
	return &Sessions{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for the given identity valid for ttl.
func (s *Sessions) Issue(userID, email string, role Role, ttl time.Duration) (*Session, error) {
	now := s.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Role:   role,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, errors.Wrap(err, "sign token")
	}
	return &Session{Token: token, ExpiresAt: exp}, nil
}

// Parse verifies token and returns its claims. Any failure is reported as
// ErrUnauthorized.
func (s *Sessions) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, errors.Wrapf(ErrUnauthorized, "parse token: %v", err)
	}
	return &claims, nil
}

// Admin verifies token and requires the admin role.
func (s *Sessions) Admin(token string) (*Claims, error) {
	c, err := s.Parse(token)
	if err != nil {
		return nil, err
	}
	if c.Role != RoleAdmin {
		return nil, errors.Wrap(ErrUnauthorized, "not an admin")
	}
	return c, nil
}
