package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furniture-store/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

const couponColumns = `id, code, discount_percentage, min_cart_value, expiry_date, is_active, created_at, updated_at`

const (
	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	listActiveCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
	WHERE is_active AND expiry_date >= $1
	ORDER BY created_at DESC`

	insertCouponSQL = `INSERT INTO coupons
	(id, code, discount_percentage, min_cart_value, expiry_date, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`

	upsertCouponSQL = `INSERT INTO coupons
	(id, code, discount_percentage, min_cart_value, expiry_date, is_active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	ON CONFLICT (code) DO UPDATE SET
		discount_percentage = EXCLUDED.discount_percentage,
		min_cart_value = EXCLUDED.min_cart_value,
		expiry_date = EXCLUDED.expiry_date,
		is_active = EXCLUDED.is_active,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at`
)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool, now: time.Now}
}

// FindByCode looks up a coupon by its normalized code.
// Returns coupon.ErrNotFound when no coupon has that code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// ListActive returns active coupons that have not expired at now.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, fmt.Errorf("scanning coupons: %w", err)
	}
	return coupons, nil
}

// Create stores a new coupon. Returns coupon.ErrExists on a duplicate code.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	c.ID = uuid.NewString()
	c.CreatedAt = r.now().UTC()
	c.UpdatedAt = c.CreatedAt

	_, err := r.pool.Exec(ctx, insertCouponSQL,
		c.ID, c.Code, c.DiscountPercentage, c.MinCartValue, c.ExpiryDate, c.IsActive, c.CreatedAt,
	)
	if err != nil {
		if uniqueViolationOn(err, "coupons_code_key") {
			return coupon.ErrExists
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert creates c or overwrites the coupon with the same code. c.ID and
// c.CreatedAt are set to the stored values.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	c.UpdatedAt = r.now().UTC()
	err := r.pool.QueryRow(ctx, upsertCouponSQL,
		uuid.NewString(), c.Code, c.DiscountPercentage, c.MinCartValue, c.ExpiryDate, c.IsActive, c.UpdatedAt,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountPercentage, &c.MinCartValue, &c.ExpiryDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}
