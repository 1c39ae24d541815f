package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	byCode     map[string]*Coupon
	err        error
	lookedUp   string
	created    *Coupon
	createErr  error
	listedAt   time.Time
	listResult []Coupon
}

func newMockCouponRepo(coupons ...Coupon) *mockCouponRepo {
	byCode := make(map[string]*Coupon, len(coupons))
	for i := range coupons {
		byCode[coupons[i].Code] = &coupons[i]
	}
	return &mockCouponRepo{byCode: byCode}
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Coupon, error) {
	m.lookedUp = code
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) ListActive(_ context.Context, now time.Time) ([]Coupon, error) {
	m.listedAt = now
	return m.listResult, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *Coupon) error {
	if m.createErr != nil {
		return m.createErr
	}
	c.ID = "c1"
	m.created = c
	return nil
}

func (m *mockCouponRepo) Upsert(_ context.Context, c *Coupon) error {
	m.byCode[c.Code] = c
	return nil
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	welcome := Coupon{
		Code:               "WELCOME10",
		DiscountPercentage: decimal.NewFromInt(10),
		MinCartValue:       decimal.NewFromInt(10000),
		ExpiryDate:         fixedNow.Add(24 * time.Hour),
		IsActive:           true,
	}
	expired := welcome
	expired.Code = "OLD10"
	expired.ExpiryDate = fixedNow.Add(-time.Second)
	inactive := welcome
	inactive.Code = "OFF10"
	inactive.IsActive = false
	expiresNow := welcome
	expiresNow.Code = "EDGE10"
	expiresNow.ExpiryDate = fixedNow
	odd := Coupon{
		Code:               "ODD15",
		DiscountPercentage: decimal.NewFromInt(15),
		ExpiryDate:         fixedNow.Add(time.Hour),
		IsActive:           true,
	}

	repo := newMockCouponRepo(welcome, expired, inactive, expiresNow, odd)

	tests := []struct {
		name         string
		code         string
		total        int64
		wantDiscount int64
		wantErr      error
		wantBelowMin bool
	}{
		{name: "valid coupon returns floor of percentage", code: "WELCOME10", total: 50000, wantDiscount: 5000},
		{name: "code is upper-cased before lookup", code: " welcome10 ", total: 50000, wantDiscount: 5000},
		{name: "total equal to minimum is eligible", code: "WELCOME10", total: 10000, wantDiscount: 1000},
		{name: "total below minimum", code: "WELCOME10", total: 5000, wantBelowMin: true},
		{name: "expired coupon is not found", code: "OLD10", total: 50000, wantErr: ErrNotFound},
		{name: "expired coupon ignores total", code: "OLD10", total: 1, wantErr: ErrNotFound},
		{name: "inactive coupon is not found", code: "OFF10", total: 50000, wantErr: ErrNotFound},
		{name: "expiry equal to now is still usable", code: "EDGE10", total: 20000, wantDiscount: 2000},
		{name: "unknown code", code: "BOGUS", total: 50000, wantErr: ErrNotFound},
		{name: "empty code", code: "  ", total: 50000, wantErr: ErrCodeRequired},
		{name: "discount is floored", code: "ODD15", total: 999, wantDiscount: 149},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.code, decimal.NewFromInt(tt.total))

			if tt.wantBelowMin {
				var bmErr *BelowMinimumError
				require.ErrorAs(t, err, &bmErr)
				assert.Equal(t, "Minimum cart value of ₹10,000 required for this coupon", bmErr.Error())
				assert.Nil(t, got)
				return
			}
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, decimal.NewFromInt(tt.wantDiscount).Equal(got.Discount),
				"expected discount %d, got %s", tt.wantDiscount, got.Discount)
		})
	}
}

func TestRepoValidator_DiscountProperty(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	percentages := []int64{1, 5, 10, 12, 33, 50, 99, 100}
	totals := []int64{0, 1, 99, 100, 101, 1234, 49999, 50000, 123457}

	for _, pct := range percentages {
		repo := newMockCouponRepo(Coupon{
			Code:               "PROP",
			DiscountPercentage: decimal.NewFromInt(pct),
			ExpiryDate:         fixedNow.Add(time.Hour),
			IsActive:           true,
		})
		v := NewRepoValidator(repo)
		v.now = func() time.Time { return fixedNow }

		for _, total := range totals {
			got, err := v.Validate(context.Background(), "PROP", decimal.NewFromInt(total))
			require.NoError(t, err)
			want := total * pct / 100
			assert.True(t, decimal.NewFromInt(want).Equal(got.Discount),
				"pct=%d total=%d: expected %d, got %s", pct, total, want, got.Discount)
			assert.Equal(t, "PROP", got.Code)
		}
	}
}

func TestRepoValidator_RepositoryError(t *testing.T) {
	repo := newMockCouponRepo()
	repo.err = errors.New("db down")

	v := NewRepoValidator(repo)
	_, err := v.Validate(context.Background(), "ANY", decimal.NewFromInt(100))

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestRepoValidator_NormalizesBeforeLookup(t *testing.T) {
	repo := newMockCouponRepo()

	v := NewRepoValidator(repo)
	_, _ = v.Validate(context.Background(), "summer25", decimal.NewFromInt(100))

	assert.Equal(t, "SUMMER25", repo.lookedUp)
}
