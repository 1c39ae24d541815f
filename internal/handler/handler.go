// Package handler exposes the storefront over HTTP with gin.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xenking/furniture-store/internal/domain/asset"
	"github.com/xenking/furniture-store/internal/domain/auth"
	"github.com/xenking/furniture-store/internal/domain/category"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/order"
	"github.com/xenking/furniture-store/internal/domain/payment"
	"github.com/xenking/furniture-store/internal/domain/product"
	"github.com/xenking/furniture-store/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// SecureCookies marks session cookies Secure. Enable in production.
	SecureCookies bool
	// MaxUploadBytes bounds the multipart body of an upload request.
	MaxUploadBytes int64
}

// Deps are the domain services behind the API.
type Deps struct {
	Products        *product.Service
	Categories      category.Repository
	Coupons         *coupon.Service
	CouponValidator coupon.Validator
	Orders          *order.Service
	Payments        *payment.Service
	Admin           *auth.AdminService
	Social          *auth.SocialService
	Sessions        *auth.Sessions
	// Assets may be nil when no asset host is configured.
	Assets *asset.Service
}

// Handler serves the storefront API.
type Handler struct {
	Deps
	secureCookies  bool
	maxUploadBytes int64
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, deps Deps) *Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 8 * asset.DefaultMaxSize
	}
	return &Handler{
		Deps:           deps,
		secureCookies:  cfg.SecureCookies,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	admin := h.RequireAdmin()

	r.GET("/products", h.ListProducts)
	r.POST("/products", admin, h.CreateProduct)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", admin, h.UpdateProduct)
	r.DELETE("/products/:id", admin, h.DeleteProduct)
	r.POST("/products/:id/reviews", h.AddReview)

	r.GET("/categories", h.ListCategories)
	r.POST("/categories", admin, h.CreateCategory)
	r.DELETE("/categories/:id", admin, h.DeleteCategory)

	r.GET("/coupons", h.ListCoupons)
	r.POST("/coupons", admin, h.CreateCoupon)
	r.POST("/coupons/validate", h.ValidateCoupon)

	r.GET("/orders", admin, h.ListOrders)
	r.POST("/orders", h.PlaceOrder)
	r.GET("/orders/:id", h.GetOrder)
	r.PUT("/orders/:id", admin, h.UpdateOrder)
	r.DELETE("/orders/:id", admin, h.DeleteOrder)

	for _, prefix := range []string{"/payment", "/razorpay"} {
		r.POST(prefix+"/order", h.CreatePaymentOrder)
		r.POST(prefix+"/verify", h.VerifyPayment)
	}

	r.POST("/admin/login", h.AdminLogin)
	r.POST("/admin/logout", h.AdminLogout)
	r.POST("/admin/otp/send", admin, h.SendOTP)
	r.POST("/admin/otp/verify", admin, h.VerifyOTP)
	r.POST("/auth/google", h.GoogleLogin)

	r.POST("/upload", admin, h.Upload)
	r.POST("/upload/delete", admin, h.DeleteUploads)
}

// NewEngine returns a gin engine serving h under prefix. Recovery, logging
// and the rest of the chain are applied around it at the net/http level;
// middleware runs on every API request, unmatched ones included.
func NewEngine(h *Handler, prefix string, middleware ...gin.HandlerFunc) *gin.Engine {
	e := gin.New()
	e.ContextWithFallback = true
	e.HandleMethodNotAllowed = false
	e.Use(middleware...)
	e.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Not found")
	})
	h.Register(e.Group(prefix))
	return e
}

// Routes lists the engine's route patterns for the middleware route finder.
func Routes(e *gin.Engine) []httpmiddleware.Route {
	info := e.Routes()
	routes := make([]httpmiddleware.Route, len(info))
	for i, r := range info {
		routes[i] = httpmiddleware.Route{Method: r.Method, Path: r.Path}
	}
	return routes
}
