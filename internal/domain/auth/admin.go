package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/notify"
	"github.com/xenking/furniture-store/internal/domain/validation"
)

const adminOTPKey = "admin"

// MailSender delivers a message synchronously.
type MailSender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// AdminConfig holds the bootstrap credentials and one-time code settings.
type AdminConfig struct {
	// FallbackEmail and FallbackPassword seed the first admin and are
	// accepted only while no admin account exists.
	FallbackEmail    string
	FallbackPassword string
	// OTPSecret keys the hash of stored one-time codes.
	OTPSecret string
	OTPTTL    time.Duration
}

// AdminService authenticates the store administrator and rotates its
// credentials behind an emailed one-time code.
type AdminService struct {
	users    UserRepository
	otps     OTPRepository
	sessions *Sessions
	mail     MailSender
	cfg      AdminConfig
	now      func() time.Time
	code     func() (string, error)
}

// NewAdminService creates an AdminService.
func NewAdminService(users UserRepository, otps OTPRepository, sessions *Sessions, mail MailSender, cfg AdminConfig) *AdminService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	cfg.FallbackEmail = NormalizeEmail(cfg.FallbackEmail)
	return &AdminService{
		users:    users,
		otps:     otps,
		sessions: sessions,
		mail:     mail,
		cfg:      cfg,
		now:      time.Now,
		code:     sixDigitCode,
	}
}

// EnsureAdmin creates the admin account from the fallback credentials when
// none exists.
func (s *AdminService) EnsureAdmin(ctx context.Context) error {
	_, err := s.users.FindAdmin(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "find admin")
	}
	if s.cfg.FallbackEmail == "" || s.cfg.FallbackPassword == "" {
		zctx.From(ctx).Warn("No admin account and no fallback credentials configured")
		return nil
	}
	if err := s.createAdmin(ctx, s.cfg.FallbackEmail, s.cfg.FallbackPassword); err != nil {
		return err
	}
	zctx.From(ctx).Info("Admin account created", zap.String("email", s.cfg.FallbackEmail))
	return nil
}

// Login checks admin credentials and issues an admin session.
func (s *AdminService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && u.Role == RoleAdmin:
		if !CheckPassword(u.PasswordHash, password) {
			return nil, ErrInvalidCredentials
		}
	case err == nil || errors.Is(err, ErrNotFound):
		// Fallback credentials only bootstrap the first admin.
		if !s.matchesFallback(email, password) {
			return nil, ErrInvalidCredentials
		}
		_, aerr := s.users.FindAdmin(ctx)
		if aerr == nil {
			return nil, ErrInvalidCredentials
		}
		if !errors.Is(aerr, ErrNotFound) {
			return nil, errors.Wrap(aerr, "find admin")
		}
		if err := s.createAdmin(ctx, email, password); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrap(err, "find user")
	}

	return s.sessions.Issue("", email, RoleAdmin, AdminSessionTTL)
}

func (s *AdminService) matchesFallback(email, password string) bool {
	if s.cfg.FallbackEmail == "" || s.cfg.FallbackPassword == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.cfg.FallbackEmail)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.FallbackPassword)) == 1
	return emailOK && passOK
}

// SendOTP generates a one-time code, stores its hash and emails it to the
// current admin address.
func (s *AdminService) SendOTP(ctx context.Context) error {
	to, err := s.adminEmail(ctx)
	if err != nil {
		return err
	}

	code, err := s.code()
	if err != nil {
		return err
	}
	if err := s.otps.Put(ctx, adminOTPKey, s.hashOTP(code), s.now().Add(s.cfg.OTPTTL)); err != nil {
		return errors.Wrap(err, "store otp")
	}

	mins := int(s.cfg.OTPTTL / time.Minute)
	err = s.mail.Send(ctx, notify.Message{
		To:       to,
		FromName: "Nilambur Security",
		Subject:  "Your Admin Update OTP",
		Text:     fmt.Sprintf("Your OTP for updating admin credentials is: %s. It expires in %d minutes.", code, mins),
	})
	if err != nil {
		return errors.Wrap(err, "send otp")
	}
	return nil
}

func (s *AdminService) adminEmail(ctx context.Context) (string, error) {
	u, err := s.users.FindAdmin(ctx)
	if err == nil {
		return u.Email, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", errors.Wrap(err, "find admin")
	}
	if s.cfg.FallbackEmail == "" {
		return "", errors.New("admin email is not configured")
	}
	return s.cfg.FallbackEmail, nil
}

// VerifyOTP consumes the one-time code and replaces the admin email and,
// when given, password.
func (s *AdminService) VerifyOTP(ctx context.Context, otp, newEmail, newPassword string) error {
	newEmail = NormalizeEmail(newEmail)
	otp = strings.TrimSpace(otp)
	if otp == "" {
		return ErrInvalidOTP
	}
	if newEmail == "" {
		return validation.Required("newEmail")
	}

	ok, err := s.otps.Consume(ctx, adminOTPKey, s.hashOTP(otp), s.now())
	if err != nil {
		return errors.Wrap(err, "consume otp")
	}
	if !ok {
		return ErrInvalidOTP
	}

	admin, err := s.users.FindAdmin(ctx)
	if errors.Is(err, ErrNotFound) {
		if newPassword == "" {
			return validation.Required("newPassword")
		}
		return s.createAdmin(ctx, newEmail, newPassword)
	}
	if err != nil {
		return errors.Wrap(err, "find admin")
	}

	var hash string
	if newPassword != "" {
		if hash, err = HashPassword(newPassword); err != nil {
			return err
		}
	}
	if _, err := s.users.UpdateCredentials(ctx, admin.ID, newEmail, hash); err != nil {
		return errors.Wrap(err, "update admin")
	}
	zctx.From(ctx).Info("Admin credentials updated", zap.String("email", newEmail))
	return nil
}

func (s *AdminService) createAdmin(ctx context.Context, email, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	err = s.users.Create(ctx, &User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         RoleAdmin,
	})
	if err != nil && !errors.Is(err, ErrExists) {
		return errors.Wrap(err, "create admin")
	}
	return nil
}

func (s *AdminService) hashOTP(code string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.OTPSecret))
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", errors.Wrap(err, "generate otp")
	}
	return fmt.Sprintf("%d", 100000+n.Int64()), nil
}
