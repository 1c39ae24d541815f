package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

// Input holds the admin-editable fields of a coupon.
type Input struct {
	Code               string
	DiscountPercentage decimal.Decimal
	MinCartValue       decimal.Decimal
	ExpiryDate         time.Time
	IsActive           *bool
}

// Service implements coupon administration.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// ListActive returns coupons that can currently be applied, newest first.
func (s *Service) ListActive(ctx context.Context) ([]Coupon, error) {
	return s.repo.ListActive(ctx, s.now())
}

// Create validates in and stores a new coupon.
func (s *Service) Create(ctx context.Context, in Input) (*Coupon, error) {
	c, err := in.Build()
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrExists) {
			return nil, ErrExists
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Build validates in and returns the coupon it describes.
func (in Input) Build() (*Coupon, error) {
	code := NormalizeCode(in.Code)
	hundred := decimal.NewFromInt(100)
	switch {
	case code == "":
		return nil, validation.Required("code")
	case in.DiscountPercentage.IsNegative() || in.DiscountPercentage.GreaterThan(hundred):
		return nil, validation.Errorf("discountPercentage must be between 0 and 100")
	case in.MinCartValue.IsNegative():
		return nil, validation.Errorf("minCartValue must not be negative")
	case in.ExpiryDate.IsZero():
		return nil, validation.Required("expiryDate")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	return &Coupon{
		Code:               code,
		DiscountPercentage: in.DiscountPercentage,
		MinCartValue:       in.MinCartValue,
		ExpiryDate:         in.ExpiryDate.UTC(),
		IsActive:           active,
	}, nil
}
