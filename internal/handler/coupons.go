package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/coupon"
)

type couponRequest struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discountPercentage"`
	MinCartValue       decimal.Decimal `json:"minCartValue"`
	ExpiryDate         date            `json:"expiryDate"`
	IsActive           *bool           `json:"isActive"`
}

// ListCoupons returns the coupons a customer can currently use.
func (h *Handler) ListCoupons(c *gin.Context) {
	coupons, err := h.Coupons.ListActive(c)
	if err != nil {
		respondError(c, err, "Failed to fetch coupons")
		return
	}
	respond(c, http.StatusOK, gin.H{"coupons": mapSlice(coupons, toCouponJSON)})
}

func (h *Handler) CreateCoupon(c *gin.Context) {
	var req couponRequest
	if !bindJSON(c, &req) {
		return
	}
	cp, err := h.Coupons.Create(c, coupon.Input{
		Code:               req.Code,
		DiscountPercentage: req.DiscountPercentage,
		MinCartValue:       req.MinCartValue,
		ExpiryDate:         time.Time(req.ExpiryDate),
		IsActive:           req.IsActive,
	})
	if err != nil {
		respondError(c, err, "Failed to create coupon")
		return
	}
	respond(c, http.StatusCreated, gin.H{"coupon": toCouponJSON(cp)})
}

type validateCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

// ValidateCoupon quotes the discount a code grants on a cart total. It never
// changes the coupon.
func (h *Handler) ValidateCoupon(c *gin.Context) {
	var req validateCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.CouponValidator.Validate(c, req.Code, req.CartTotal)
	if err != nil {
		respondError(c, err, "")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"code":               res.Code,
		"discount":           res.Discount.InexactFloat64(),
		"discountPercentage": res.DiscountPercentage.InexactFloat64(),
	})
}

// date accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date, which is
// what HTML date inputs submit. A bare date expires at the end of that day.
type date time.Time

func (d *date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = date{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = date(t)
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return errors.Wrap(err, "parse date")
	}
	*d = date(t.Add(24*time.Hour - time.Nanosecond))
	return nil
}
