package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/furniture-store/internal/domain/asset"
	"github.com/xenking/furniture-store/internal/domain/auth"
	"github.com/xenking/furniture-store/internal/domain/category"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/notify"
	"github.com/xenking/furniture-store/internal/domain/order"
	"github.com/xenking/furniture-store/internal/domain/payment"
	"github.com/xenking/furniture-store/internal/domain/product"
)

const (
	testSecret    = "session-secret"
	testKeySecret = "gateway-secret"
)

// --- In-memory repositories ---

type memProducts struct {
	mu    sync.Mutex
	items map[string]*product.Product
	seq   int
}

func newMemProducts(ps ...product.Product) *memProducts {
	m := &memProducts{items: make(map[string]*product.Product)}
	for i := range ps {
		p := ps[i]
		m.items[p.ID] = &p
	}
	return m
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.items[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = "new-" + string(rune('0'+m.seq))
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProducts) Update(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[p.ID]
	if !ok {
		return product.ErrNotFound
	}
	p.Ratings, p.Reviews, p.UserReviews = cur.Ratings, cur.Reviews, cur.UserReviews
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return product.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memProducts) AddReview(_ context.Context, id string, r product.Review) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.UserReviews = append(p.UserReviews, r)
	p.Ratings, p.Reviews = product.Summarize(p.UserReviews)
	cp := *p
	return &cp, nil
}

type memCategories struct {
	items []category.Category
}

func (m *memCategories) List(context.Context) ([]category.Category, error) { return m.items, nil }

func (m *memCategories) Create(_ context.Context, c *category.Category) error {
	for _, existing := range m.items {
		if strings.EqualFold(existing.Name, c.Name) {
			return category.ErrExists
		}
	}
	c.ID = "cat-" + c.Name
	m.items = append(m.items, *c)
	return nil
}

func (m *memCategories) Delete(_ context.Context, id string) error {
	for i, c := range m.items {
		if c.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return category.ErrNotFound
}

type memCoupons struct {
	items map[string]coupon.Coupon
}

func (m *memCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.items[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (m *memCoupons) ListActive(_ context.Context, now time.Time) ([]coupon.Coupon, error) {
	var out []coupon.Coupon
	for _, c := range m.items {
		if c.Usable(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	if _, ok := m.items[c.Code]; ok {
		return coupon.ErrExists
	}
	c.ID = "cp-" + c.Code
	m.items[c.Code] = *c
	return nil
}

func (m *memCoupons) Upsert(_ context.Context, c *coupon.Coupon) error {
	m.items[c.Code] = *c
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func (m *memOrders) Place(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.OrderID == o.OrderID {
			return order.ErrDuplicateOrderID
		}
		if o.RazorpayPaymentID != "" && existing.RazorpayPaymentID == o.RazorpayPaymentID {
			return order.ErrPaymentReused
		}
	}
	o.ID = "oid-" + o.OrderID
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) GetByOrderID(_ context.Context, orderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderID == orderID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) List(context.Context) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, from, to order.Status, pay order.PaymentStatus) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != from {
		return nil, order.ErrStatusConflict
	}
	o.Status, o.PaymentStatus = to, pay
	cp := *o
	return &cp, nil
}

func (m *memOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

type memUsers struct {
	users []auth.User
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) FindAdmin(context.Context) (*auth.User, error) {
	for _, u := range m.users {
		if u.Role == auth.RoleAdmin {
			return &u, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *auth.User) error {
	u.ID = "u" + string(rune('0'+len(m.users)))
	m.users = append(m.users, *u)
	return nil
}

func (m *memUsers) UpdateCredentials(_ context.Context, id, email, hash string) (*auth.User, error) {
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].Email = email
			if hash != "" {
				m.users[i].PasswordHash = hash
			}
			return &m.users[i], nil
		}
	}
	return nil, auth.ErrNotFound
}

type memOTPs struct{}

func (memOTPs) Put(context.Context, string, string, time.Time) error { return nil }

func (memOTPs) Consume(context.Context, string, string, time.Time) (bool, error) {
	return false, nil
}

type nopMail struct{}

func (nopMail) Send(context.Context, notify.Message) error { return nil }

// stubGateway opens every order as order_123 for ₹45,000, the total of
// orderBody.
type stubGateway struct {
	err error
}

const stubGatewayAmount = 4500000

func (g stubGateway) CreateOrder(_ context.Context, req payment.CreateOrderRequest) (*payment.GatewayOrder, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &payment.GatewayOrder{
		ID:       "order_123",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g stubGateway) FetchOrder(_ context.Context, id string) (*payment.GatewayOrder, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &payment.GatewayOrder{ID: id, Amount: stubGatewayAmount, Currency: "INR", Status: "paid"}, nil
}

type stubIdentity struct {
	id  *auth.Identity
	err error
}

func (s stubIdentity) Verify(context.Context, string) (*auth.Identity, error) { return s.id, s.err }

type memStore struct {
	puts    []string
	deleted []string
}

func (s *memStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	s.puts = append(s.puts, key)
	return "https://cdn.test/" + key, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	if key == "missing.png" {
		return errors.New("no such key")
	}
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memStore) KeyFor(url string) (string, bool) {
	return strings.CutPrefix(url, "https://cdn.test/")
}

// --- Fixture ---

type fixture struct {
	t        *testing.T
	engine   *gin.Engine
	sessions *auth.Sessions
	store    *memStore
	orders   *memOrders
	products *memProducts
}

func newFixture(t *testing.T, withAssets bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	products := newMemProducts(
		product.Product{
			ID: "sofa", Name: "Teak Sofa", Description: "Three seater",
			Price: decimal.NewFromInt(30000), Category: "Living", Images: []string{"https://cdn.test/sofa.jpg"}, Stock: 5,
		},
		product.Product{
			ID: "chair", Name: "Rocking Chair", Description: "Cane",
			Price: decimal.NewFromInt(10000), Category: "Living", Images: []string{"https://cdn.test/chair.jpg"}, Stock: 2,
		},
	)
	coupons := &memCoupons{items: map[string]coupon.Coupon{
		"WELCOME10": {
			ID: "cp1", Code: "WELCOME10", DiscountPercentage: decimal.NewFromInt(10),
			MinCartValue: decimal.NewFromInt(10000), ExpiryDate: time.Now().Add(24 * time.Hour), IsActive: true,
		},
	}}
	orders := &memOrders{orders: make(map[string]*order.Order)}
	validator := coupon.NewRepoValidator(coupons)
	payments := payment.NewService(stubGateway{}, testKeySecret, "INR")

	orderSvc, err := order.NewService(products, validator, orders, payments, nil, order.Config{})
	require.NoError(t, err)

	sessions := auth.NewSessions(testSecret)
	users := &memUsers{}
	adminSvc := auth.NewAdminService(users, memOTPs{}, sessions, nopMail{}, auth.AdminConfig{
		FallbackEmail:    "admin@store.test",
		FallbackPassword: "hunter2",
		OTPSecret:        "otp",
	})
	social := auth.NewSocialService(users, sessions, stubIdentity{
		id: &auth.Identity{Subject: "g1", Email: "buyer@store.test", Name: "Buyer", Picture: "https://pic.test/a.png"},
	})

	store := &memStore{}
	deps := Deps{
		Products:        product.NewService(products, nil),
		Categories:      &memCategories{},
		Coupons:         coupon.NewService(coupons),
		CouponValidator: validator,
		Orders:          orderSvc,
		Payments:        payments,
		Admin:           adminSvc,
		Social:          social,
		Sessions:        sessions,
	}
	if withAssets {
		deps.Assets = asset.NewService(store, "products", 0)
	}

	h := NewHandler(HandlerConfig{}, deps)
	return &fixture{
		t:        t,
		engine:   NewEngine(h, "/api"),
		sessions: sessions,
		store:    store,
		orders:   orders,
		products: products,
	}
}

func (f *fixture) adminToken() string {
	f.t.Helper()
	s, err := f.sessions.Issue("", "admin@store.test", auth.RoleAdmin, time.Hour)
	require.NoError(f.t, err)
	return s.Token
}

func (f *fixture) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// --- Tests ---

func TestProducts(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["products"], 2)

	rec = f.do(http.MethodGet, "/api/products/sofa", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode(t, rec)["product"].(map[string]any)
	assert.Equal(t, "sofa", p["_id"])
	assert.Equal(t, float64(30000), p["price"])

	rec = f.do(http.MethodGet, "/api/products/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decode(t, rec)["message"])
}

func TestProductAdminRoutes(t *testing.T) {
	f := newFixture(t, false)
	in := map[string]any{
		"name": "Dining Table", "description": "Six seater", "price": 45000,
		"category": "Dining", "images": []string{"https://cdn.test/t.jpg"}, "stock": 3,
	}

	t.Run("Unauthenticated", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/products", in, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, false, decode(t, rec)["success"])
	})
	t.Run("CustomerSession", func(t *testing.T) {
		s, err := f.sessions.Issue("u1", "buyer@store.test", auth.RoleUser, time.Hour)
		require.NoError(t, err)
		rec := f.do(http.MethodPost, "/api/products", in, s.Token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
	t.Run("Create", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/products", in, f.adminToken())
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		p := decode(t, rec)["product"].(map[string]any)
		assert.Equal(t, "Dining Table", p["name"])
	})
	t.Run("Invalid", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/products", map[string]any{"name": "x"}, f.adminToken())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("CookieSession", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/products/chair", nil)
		req.AddCookie(&http.Cookie{Name: AdminCookie, Value: f.adminToken()})
		rec := httptest.NewRecorder()
		f.engine.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Product and associated images deleted", decode(t, rec)["message"])
	})
}

func TestAddReview(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/products/sofa/reviews",
		map[string]any{"user": "Asha", "rating": 4, "comment": "Sturdy"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode(t, rec)["product"].(map[string]any)
	assert.Equal(t, float64(4), p["ratings"])
	assert.Equal(t, float64(1), p["reviews"])

	rec = f.do(http.MethodPost, "/api/products/sofa/reviews",
		map[string]any{"user": "Asha", "rating": 9, "comment": "?"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategories(t *testing.T) {
	f := newFixture(t, false)
	token := f.adminToken()

	rec := f.do(http.MethodPost, "/api/categories", map[string]any{"name": "Bedroom"}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/categories", map[string]any{"name": "Bedroom"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Category already exists", decode(t, rec)["message"])

	rec = f.do(http.MethodGet, "/api/categories", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["categories"], 1)

	rec = f.do(http.MethodDelete, "/api/categories/missing", nil, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateCoupon(t *testing.T) {
	f := newFixture(t, false)

	for _, tt := range []struct {
		name    string
		body    map[string]any
		status  int
		message string
	}{
		{
			name:   "Applies",
			body:   map[string]any{"code": "welcome10", "cartTotal": 50000},
			status: http.StatusOK,
		},
		{
			name:    "BelowMinimum",
			body:    map[string]any{"code": "WELCOME10", "cartTotal": 5000},
			status:  http.StatusBadRequest,
			message: "Minimum cart value of ₹10,000 required for this coupon",
		},
		{
			name:    "Unknown",
			body:    map[string]any{"code": "NOPE", "cartTotal": 50000},
			status:  http.StatusNotFound,
			message: "Invalid or expired coupon code",
		},
		{
			name:    "MissingCode",
			body:    map[string]any{"cartTotal": 50000},
			status:  http.StatusBadRequest,
			message: "Coupon code is required",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/coupons/validate", tt.body, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			if tt.status == http.StatusOK {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, float64(5000), body["discount"])
				assert.Equal(t, float64(10), body["discountPercentage"])
				assert.Equal(t, "WELCOME10", body["code"])
				return
			}
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestCreateCoupon(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/coupons", map[string]any{
		"code": "diwali", "discountPercentage": 15, "minCartValue": 0, "expiryDate": "2099-11-01",
	}, f.adminToken())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := decode(t, rec)["coupon"].(map[string]any)
	assert.Equal(t, "DIWALI", c["code"])
	assert.Equal(t, true, c["isActive"])

	rec = f.do(http.MethodGet, "/api/coupons", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["coupons"], 2)
}

func orderBody() map[string]any {
	return map[string]any{
		"customerInfo":    map[string]any{"name": "Asha", "email": "asha@example.com", "phone": "9999999999"},
		"items":           []map[string]any{{"productId": "sofa", "quantity": 1}, {"id": "chair", "quantity": 2}},
		"shippingAddress": map[string]any{"address": "1 MG Road", "city": "Nilambur", "postalCode": "679329"},
		"paymentMethod":   "COD",
		"couponCode":      "WELCOME10",
	}
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/orders", orderBody(), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode(t, rec)["order"].(map[string]any)
	assert.Equal(t, float64(50000), o["subtotal"])
	assert.Equal(t, float64(5000), o["discountAmount"])
	assert.Equal(t, float64(45000), o["total"])
	assert.Equal(t, "Pending", o["orderStatus"])
	assert.Equal(t, "Pending", o["paymentStatus"])
	ref := o["orderId"].(string)
	assert.True(t, strings.HasPrefix(ref, "NIL-"), ref)

	rec = f.do(http.MethodGet, "/api/orders/"+ref, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ref, decode(t, rec)["order"].(map[string]any)["orderId"])
}

func TestPlaceOrderRejected(t *testing.T) {
	f := newFixture(t, false)

	t.Run("TotalMismatch", func(t *testing.T) {
		body := orderBody()
		body["total"] = 100
		rec := f.do(http.MethodPost, "/api/orders", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("UnknownProduct", func(t *testing.T) {
		body := orderBody()
		body["items"] = []map[string]any{{"productId": "ghost", "quantity": 1}}
		rec := f.do(http.MethodPost, "/api/orders", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("MissingCustomer", func(t *testing.T) {
		body := orderBody()
		delete(body, "customerInfo")
		rec := f.do(http.MethodPost, "/api/orders", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("BadSignature", func(t *testing.T) {
		body := orderBody()
		body["paymentMethod"] = "Razorpay"
		body["razorpayOrderId"] = "order_123"
		body["razorpayPaymentId"] = "pay_1"
		body["razorpaySignature"] = "forged"
		rec := f.do(http.MethodPost, "/api/orders", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
	t.Run("MalformedJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		f.engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body", decode(t, rec)["message"])
	})
}

func TestPlaceOrderPaid(t *testing.T) {
	f := newFixture(t, false)

	body := orderBody()
	body["paymentMethod"] = "Razorpay"
	body["razorpayOrderId"] = "order_123"
	body["razorpayPaymentId"] = "pay_1"
	body["razorpaySignature"] = payment.Sign([]byte(testKeySecret), "order_123", "pay_1")

	rec := f.do(http.MethodPost, "/api/orders", body, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	o := decode(t, rec)["order"].(map[string]any)
	assert.Equal(t, "Paid", o["paymentStatus"])
	assert.Equal(t, "pay_1", o["razorpayPaymentId"])

	rec = f.do(http.MethodPost, "/api/orders", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment has already been used for another order", decode(t, rec)["message"])
}

func TestPlaceOrderPaid_AmountMismatch(t *testing.T) {
	f := newFixture(t, false)

	// Without the coupon the total is ₹50,000 while the gateway order was
	// opened for ₹45,000.
	body := orderBody()
	delete(body, "couponCode")
	body["paymentMethod"] = "Razorpay"
	body["razorpayOrderId"] = "order_123"
	body["razorpayPaymentId"] = "pay_2"
	body["razorpaySignature"] = payment.Sign([]byte(testKeySecret), "order_123", "pay_2")

	rec := f.do(http.MethodPost, "/api/orders", body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment amount does not match the order total", decode(t, rec)["message"])
	assert.Empty(t, f.orders.orders)
}

func TestUpdateOrder(t *testing.T) {
	f := newFixture(t, false)
	token := f.adminToken()

	rec := f.do(http.MethodPost, "/api/orders", orderBody(), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["order"].(map[string]any)["_id"].(string)

	rec = f.do(http.MethodPut, "/api/orders/"+id, map[string]any{"orderStatus": "Confirmed"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPut, "/api/orders/"+id, map[string]any{"orderStatus": "Confirmed"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o := decode(t, rec)["order"].(map[string]any)
	assert.Equal(t, "Confirmed", o["orderStatus"])
	assert.Equal(t, "Paid", o["paymentStatus"])

	rec = f.do(http.MethodPut, "/api/orders/"+id, map[string]any{"orderStatus": "Bogus"}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/api/orders", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["orders"], 1)

	rec = f.do(http.MethodDelete, "/api/orders/"+id, nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Order deleted successfully", decode(t, rec)["message"])

	rec = f.do(http.MethodGet, "/api/orders/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", decode(t, rec)["message"])
}

func TestPayment(t *testing.T) {
	f := newFixture(t, false)

	for _, prefix := range []string{"/api/payment", "/api/razorpay"} {
		t.Run(prefix, func(t *testing.T) {
			rec := f.do(http.MethodPost, prefix+"/order", map[string]any{"amount": 499.5}, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, "order_123", body["id"])
			assert.Equal(t, float64(49950), body["amount"])
			assert.Equal(t, "INR", body["currency"])

			rec = f.do(http.MethodPost, prefix+"/order", map[string]any{}, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Amount is required", decode(t, rec)["message"])

			rec = f.do(http.MethodPost, prefix+"/verify", map[string]any{
				"razorpay_order_id":   "order_123",
				"razorpay_payment_id": "pay_1",
				"razorpay_signature":  payment.Sign([]byte(testKeySecret), "order_123", "pay_1"),
			}, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Payment verified successfully", decode(t, rec)["message"])

			rec = f.do(http.MethodPost, prefix+"/verify", map[string]any{
				"razorpay_order_id":   "order_123",
				"razorpay_payment_id": "pay_1",
				"razorpay_signature":  "deadbeef",
			}, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid signature sent!", decode(t, rec)["message"])
		})
	}
}

func TestAdminLogin(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/admin/login", map[string]any{"email": "admin@store.test", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/api/admin/login", map[string]any{"email": "admin@store.test", "password": "hunter2"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Logged in successfully", decode(t, rec)["message"])

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == AdminCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, session.SameSite)
	assert.Equal(t, "/", session.Path)

	_, err := f.sessions.Admin(session.Value)
	require.NoError(t, err)

	rec = f.do(http.MethodPost, "/api/admin/logout", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, AdminCookie, cleared[0].Name)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestGoogleLogin(t *testing.T) {
	f := newFixture(t, false)

	rec := f.do(http.MethodPost, "/api/auth/google", map[string]any{"accessToken": "ya29.x"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Google Login successful!", body["message"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "buyer@store.test", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, "https://pic.test/a.png", user["picture"])

	var found bool
	for _, c := range rec.Result().Cookies() {
		found = found || c.Name == UserCookie
	}
	assert.True(t, found)

	rec = f.do(http.MethodPost, "/api/auth/google", map[string]any{"token": "ya29.x"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/api/auth/google", map[string]any{}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartBody(t *testing.T, files map[string][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestUpload(t *testing.T) {
	t.Run("NotConfigured", func(t *testing.T) {
		f := newFixture(t, false)
		rec := f.do(http.MethodPost, "/api/upload", nil, f.adminToken())
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("Images", func(t *testing.T) {
		f := newFixture(t, true)
		body, ctype := multipartBody(t, map[string][]byte{"a.png": pngHeader})
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ctype)
		req.Header.Set("Authorization", "Bearer "+f.adminToken())
		rec := httptest.NewRecorder()
		f.engine.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		urls := decode(t, rec)["urls"].([]any)
		require.Len(t, urls, 1)
		assert.True(t, strings.HasPrefix(urls[0].(string), "https://cdn.test/products/"))
		assert.Len(t, f.store.puts, 1)
	})

	t.Run("NotAnImage", func(t *testing.T) {
		f := newFixture(t, true)
		body, ctype := multipartBody(t, map[string][]byte{"a.png": []byte("plain text")})
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ctype)
		req.Header.Set("Authorization", "Bearer "+f.adminToken())
		rec := httptest.NewRecorder()
		f.engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NoFiles", func(t *testing.T) {
		f := newFixture(t, true)
		body, ctype := multipartBody(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", ctype)
		req.Header.Set("Authorization", "Bearer "+f.adminToken())
		rec := httptest.NewRecorder()
		f.engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No files provided.", decode(t, rec)["message"])
	})
}

func TestDeleteUploads(t *testing.T) {
	f := newFixture(t, true)
	token := f.adminToken()

	rec := f.do(http.MethodPost, "/api/upload/delete", map[string]any{}, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No URL(s) provided.", decode(t, rec)["message"])

	rec = f.do(http.MethodPost, "/api/upload/delete", map[string]any{"url": "https://cdn.test/a.png"}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "All images deleted", decode(t, rec)["message"])

	rec = f.do(http.MethodPost, "/api/upload/delete", map[string]any{
		"urls": []string{"https://cdn.test/b.png", "https://cdn.test/missing.png", "https://elsewhere/c.png"},
	}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Some images may not have been deleted", body["message"])
	results := body["results"].([]any)
	require.Len(t, results, 3)
	assert.Equal(t, true, results[0].(map[string]any)["deleted"])
	assert.Equal(t, false, results[1].(map[string]any)["deleted"])
	assert.Equal(t, "Could not extract object key", results[2].(map[string]any)["error"])
	assert.Equal(t, []string{"a.png", "b.png"}, f.store.deleted)
}

func TestNotFoundEnvelope(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(http.MethodGet, "/api/nothing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}

func TestErrorStatus(t *testing.T) {
	for _, tt := range []struct {
		err    error
		status int
		known  bool
	}{
		{errors.Wrap(order.ErrNotFound, "get"), http.StatusNotFound, true},
		{order.ErrStatusConflict, http.StatusConflict, true},
		{&payment.GatewayError{Op: "create order", Err: io.EOF}, http.StatusInternalServerError, true},
		{errors.Wrap(auth.ErrUnauthorized, "parse"), http.StatusUnauthorized, true},
		{&order.InsufficientStockError{ProductID: "p"}, http.StatusBadRequest, true},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, false},
	} {
		status, _, known := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.known, known, tt.err.Error())
	}
}
