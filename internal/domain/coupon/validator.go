package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

// Result is the outcome of a successful coupon check.
type Result struct {
	Code               string
	DiscountPercentage decimal.Decimal
	Discount           decimal.Decimal
}

// Validator checks a coupon code against a cart total and returns the
// discount it grants.
type Validator interface {
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*Result, error)
}

// RepoValidator implements Validator by looking up coupons in a Repository.
// It is read-only: validating a coupon never changes it.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate normalizes the code, checks that the coupon is active, unexpired
// and that cartTotal reaches its minimum, and computes the discount.
func (v *RepoValidator) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*Result, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if cartTotal.IsNegative() {
		return nil, validation.Errorf("cart total must not be negative")
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Usable(v.now()) {
		return nil, ErrNotFound
	}

	if cartTotal.LessThan(c.MinCartValue) {
		return nil, &BelowMinimumError{Minimum: c.MinCartValue}
	}

	return &Result{
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage,
		Discount:           c.DiscountFor(cartTotal),
	}, nil
}
