package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

// Identity is the profile returned by an identity provider.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityVerifier exchanges a provider access token for the profile it
// belongs to. A rejected token yields ErrInvalidToken.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (*Identity, error)
}

// SocialLogin is the outcome of a successful provider sign-in.
type SocialLogin struct {
	User    *User
	Picture string
	Session *Session
}

// SocialService signs customers in with an external identity provider.
type SocialService struct {
	users    UserRepository
	sessions *Sessions
	verifier IdentityVerifier
}

// NewSocialService creates a SocialService.
func NewSocialService(users UserRepository, sessions *Sessions, verifier IdentityVerifier) *SocialService {
	return &SocialService{users: users, sessions: sessions, verifier: verifier}
}

// GoogleLogin verifies accessToken, finds or creates the matching user and
// issues a customer session.
func (s *SocialService) GoogleLogin(ctx context.Context, accessToken string) (*SocialLogin, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, validation.Errorf("Token missing.")
	}

	id, err := s.verifier.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	email := NormalizeEmail(id.Email)
	if email == "" {
		return nil, validation.Errorf("Email is required from Google.")
	}

	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		u, err = s.register(ctx, email, id.Name)
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}

	sess, err := s.sessions.Issue(u.ID, u.Email, u.Role, UserSessionTTL)
	if err != nil {
		return nil, err
	}
	return &SocialLogin{User: u, Picture: id.Picture, Session: sess}, nil
}

func (s *SocialService) register(ctx context.Context, email, name string) (*User, error) {
	pass, err := randomPassword()
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(pass)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = "Google User"
	}

	u := &User{Name: name, Email: email, PasswordHash: hash, Role: RoleUser}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrExists) {
			return s.users.FindByEmail(ctx, email)
		}
		return nil, err
	}
	zctx.From(ctx).Info("User registered", zap.String("email", email))
	return u, nil
}
