package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/money"
)

var (
	// ErrNotFound is returned when no active, unexpired coupon matches a code.
	ErrNotFound = errors.New("invalid or expired coupon code")
	// ErrExists is returned when creating a coupon whose code is taken.
	ErrExists = errors.New("coupon code already exists")
	// ErrCodeRequired is returned when validating an empty code.
	ErrCodeRequired = errors.New("coupon code is required")
)

// BelowMinimumError reports a cart total below the coupon's minimum cart value.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("Minimum cart value of %s required for this coupon", money.Rupees(e.Minimum))
}

// Coupon is a percentage discount code.
//
// There is no redemption counter: a coupon can be used any number of times
// while it is active and unexpired.
type Coupon struct {
	ID                 string
	Code               string
	DiscountPercentage decimal.Decimal
	MinCartValue       decimal.Decimal
	ExpiryDate         time.Time
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Usable reports whether c can be applied at time now.
func (c *Coupon) Usable(now time.Time) bool {
	return c.IsActive && !c.ExpiryDate.Before(now)
}

// DiscountFor returns floor(total * pct / 100).
func (c *Coupon) DiscountFor(total decimal.Decimal) decimal.Decimal {
	return Discount(total, c.DiscountPercentage)
}

// Discount returns floor(total * pct / 100).
func Discount(total, pct decimal.Decimal) decimal.Decimal {
	return total.Mul(pct).Div(decimal.NewFromInt(100)).Floor()
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository provides lookup and mutation of coupons. Codes passed in are
// already normalized.
type Repository interface {
	// FindByCode returns the coupon with the given code regardless of its
	// state, or ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListActive returns active coupons expiring at or after now, newest first.
	ListActive(ctx context.Context, now time.Time) ([]Coupon, error)
	// Create stores c and assigns its ID. Returns ErrExists on a duplicate code.
	Create(ctx context.Context, c *Coupon) error
	// Upsert creates c or overwrites the coupon with the same code.
	Upsert(ctx context.Context, c *Coupon) error
}
