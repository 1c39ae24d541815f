package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/asset"
	"github.com/xenking/furniture-store/internal/domain/auth"
	"github.com/xenking/furniture-store/internal/domain/category"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/order"
	"github.com/xenking/furniture-store/internal/domain/payment"
	"github.com/xenking/furniture-store/internal/domain/product"
	"github.com/xenking/furniture-store/internal/domain/validation"
)

const serverError = "Server error"

// fail aborts with the error envelope.
func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// respond writes a success envelope merged with body.
func respond(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	body["success"] = true
	c.JSON(status, body)
}

// errorStatus maps a domain error to a status code and a caller-safe
// message. ok is false for unexpected errors.
func errorStatus(err error) (status int, message string, ok bool) {
	var (
		validationErr *validation.Error
		belowMin      *coupon.BelowMinimumError
		unknown       *order.ProductNotFoundError
		noStock       *order.InsufficientStockError
		mismatch      *order.PriceMismatchError
		transition    *order.TransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Message, true
	case errors.As(err, &belowMin):
		return http.StatusBadRequest, belowMin.Error(), true
	case errors.As(err, &unknown):
		return http.StatusBadRequest, unknown.Error(), true
	case errors.As(err, &noStock):
		return http.StatusBadRequest, noStock.Error(), true
	case errors.As(err, &mismatch):
		return http.StatusBadRequest, mismatch.Error(), true
	case errors.As(err, &transition):
		return http.StatusBadRequest, transition.Error(), true

	case errors.Is(err, coupon.ErrCodeRequired):
		return http.StatusBadRequest, "Coupon code is required", true
	case errors.Is(err, coupon.ErrNotFound):
		return http.StatusNotFound, "Invalid or expired coupon code", true
	case errors.Is(err, coupon.ErrExists):
		return http.StatusBadRequest, "Coupon code already exists", true
	case errors.Is(err, category.ErrExists):
		return http.StatusBadRequest, "Category already exists", true
	case errors.Is(err, category.ErrNotFound):
		return http.StatusNotFound, "Category not found", true
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "Product not found", true
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "Order not found", true
	case errors.Is(err, order.ErrPaymentReused):
		return http.StatusBadRequest, "Payment has already been used for another order", true
	case errors.Is(err, order.ErrStatusConflict):
		return http.StatusConflict, "Order was modified concurrently, reload and try again", true
	case errors.Is(err, asset.ErrUnknownURL):
		return http.StatusBadRequest, asset.ErrUnknownURL.Error(), true

	case errors.Is(err, auth.ErrInvalidOTP):
		return http.StatusBadRequest, auth.ErrInvalidOTP.Error(), true
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error(), true
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, auth.ErrInvalidToken.Error(), true
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized", true
	case errors.Is(err, auth.ErrExists):
		return http.StatusBadRequest, "User already exists", true

	case errors.Is(err, payment.ErrGateway):
		return http.StatusInternalServerError, "Payment service is unavailable, please try again", true
	}
	return http.StatusInternalServerError, serverError, false
}

// respondError maps err to the error envelope. fallback replaces the
// message of unexpected errors when non-empty.
func respondError(c *gin.Context, err error, fallback string) {
	status, message, known := errorStatus(err)
	lg := zctx.From(c.Request.Context())
	switch {
	case !known:
		lg.Error("Request failed", zap.Error(err))
		if fallback != "" {
			message = fallback
		}
	case status >= http.StatusInternalServerError:
		lg.Error("Request failed", zap.Error(err))
	default:
		lg.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	fail(c, status, message)
}

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		zctx.From(c.Request.Context()).Debug("Bad request body", zap.Error(err))
		fail(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}
