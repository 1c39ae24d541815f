package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/product"
	"github.com/xenking/furniture-store/internal/domain/validation"
)

const maxIDAttempts = 5

// Catalog resolves the products referenced by an order.
type Catalog interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// PaymentVerifier checks a signed gateway payment confirmation.
type PaymentVerifier interface {
	VerifyPayment(orderID, paymentID, signature string) (bool, error)
	// VerifyAmount fails with a validation error unless the gateway order
	// was opened for amount.
	VerifyAmount(ctx context.Context, gatewayOrderID string, amount decimal.Decimal) error
}

// Notifier is told about placed orders and status changes. Implementations
// must not block and must not fail the caller.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order)
	StatusChanged(ctx context.Context, o Order)
}

// Config tunes order placement and status handling.
type Config struct {
	IDPrefix string
	IDDigits int
	// PriceTolerance is the largest accepted difference between a client
	// submitted total and the recomputed one.
	PriceTolerance decimal.Decimal
	// PermissiveStatus allows any status change instead of the lifecycle
	// graph.
	PermissiveStatus bool

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (c *Config) setDefaults() {
	if c.IDPrefix == "" {
		c.IDPrefix = "NIL"
	}
	if c.IDDigits <= 0 {
		c.IDDigits = 6
	}
	if c.PriceTolerance.IsZero() {
		c.PriceTolerance = decimal.NewFromInt(1)
	}
	if c.MeterProvider == nil {
		c.MeterProvider = metricnoop.NewMeterProvider()
	}
	if c.TracerProvider == nil {
		c.TracerProvider = tracenoop.NewTracerProvider()
	}
}

// DraftItem is a requested line item.
type DraftItem struct {
	ProductID string
	Quantity  int
}

// PaymentProof is a gateway payment confirmation submitted with the order.
type PaymentProof struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// Draft is an order as submitted by the customer.
type Draft struct {
	Customer      CustomerInfo
	Items         []DraftItem
	Shipping      ShippingAddress
	PaymentMethod PaymentMethod
	CouponCode    string
	// ClientTotal is the total the customer saw, if submitted.
	ClientTotal *decimal.Decimal
	Payment     *PaymentProof
}

func (d *Draft) validate() error {
	switch {
	case strings.TrimSpace(d.Customer.Name) == "":
		return validation.Required("customerInfo.name")
	case strings.TrimSpace(d.Customer.Email) == "":
		return validation.Required("customerInfo.email")
	case strings.TrimSpace(d.Customer.Phone) == "":
		return validation.Required("customerInfo.phone")
	case len(d.Items) == 0:
		return validation.Errorf("at least one item is required")
	case strings.TrimSpace(d.Shipping.Address) == "":
		return validation.Required("shippingAddress.address")
	case strings.TrimSpace(d.Shipping.City) == "":
		return validation.Required("shippingAddress.city")
	case strings.TrimSpace(d.Shipping.PostalCode) == "":
		return validation.Required("shippingAddress.postalCode")
	case d.PaymentMethod == "":
		return validation.Required("paymentMethod")
	case !d.PaymentMethod.Valid():
		return validation.Errorf("unsupported payment method %q", d.PaymentMethod)
	}
	for _, it := range d.Items {
		if it.ProductID == "" {
			return validation.Required("items.productId")
		}
		if it.Quantity <= 0 {
			return validation.Errorf("quantity must be greater than 0 for product %s", it.ProductID)
		}
	}
	return nil
}

// Patch is an admin status update. Empty fields are left unchanged.
type Patch struct {
	OrderStatus   Status
	PaymentStatus PaymentStatus
}

// Service encapsulates order placement and fulfilment.
type Service struct {
	catalog  Catalog
	coupons  coupon.Validator
	orders   Repository
	payments PaymentVerifier
	notifier Notifier
	cfg      Config
	newID    IDGenerator

	tracer        trace.Tracer
	placed        metric.Int64Counter
	statusChanges metric.Int64Counter
}

// NewService creates an order Service. payments and notifier may be nil.
func NewService(
	catalog Catalog,
	coupons coupon.Validator,
	orders Repository,
	payments PaymentVerifier,
	notifier Notifier,
	cfg Config,
) (*Service, error) {
	cfg.setDefaults()

	meter := cfg.MeterProvider.Meter("store/order")
	placed, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.placed counter")
	}
	statusChanges, err := meter.Int64Counter("orders.status_changes",
		metric.WithDescription("Order status transitions"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders.status_changes counter")
	}

	return &Service{
		catalog:       catalog,
		coupons:       coupons,
		orders:        orders,
		payments:      payments,
		notifier:      notifier,
		cfg:           cfg,
		newID:         NewIDGenerator(cfg.IDPrefix, cfg.IDDigits),
		tracer:        cfg.TracerProvider.Tracer("store/order"),
		placed:        placed,
		statusChanges: statusChanges,
	}, nil
}

// PlaceOrder prices the draft from the catalog, applies the coupon, persists
// the order together with the stock decrements and notifies the customer and
// the operator.
func (s *Service) PlaceOrder(ctx context.Context, d Draft) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Place")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if err := d.validate(); err != nil {
		return nil, err
	}

	items, subtotal, err := s.price(ctx, d.Items)
	if err != nil {
		return nil, err
	}

	discount := decimal.Zero
	var couponCode string
	if strings.TrimSpace(d.CouponCode) != "" {
		res, err := s.coupons.Validate(ctx, d.CouponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = res.Discount
		couponCode = res.Code
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	if d.ClientTotal != nil && d.ClientTotal.Sub(total).Abs().GreaterThan(s.cfg.PriceTolerance) {
		return nil, &PriceMismatchError{Submitted: *d.ClientTotal, Computed: total}
	}

	o := &Order{
		Customer: CustomerInfo{
			Name:  strings.TrimSpace(d.Customer.Name),
			Email: strings.TrimSpace(d.Customer.Email),
			Phone: strings.TrimSpace(d.Customer.Phone),
		},
		Items:          items,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		Total:          total,
		CouponCode:     couponCode,
		Shipping:       d.Shipping,
		PaymentMethod:  d.PaymentMethod,
		PaymentStatus:  PaymentPending,
		Status:         StatusPending,
	}
	if err := s.attachPayment(ctx, o, d.Payment); err != nil {
		return nil, err
	}

	if err := s.insert(ctx, o); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", o.OrderID),
		attribute.Int("order.items", len(o.Items)),
	)
	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_method", string(o.PaymentMethod)),
	))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.OrderID),
		zap.String("total", o.Total.String()),
		zap.String("payment_method", string(o.PaymentMethod)),
	)

	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, *o)
	}
	return o, nil
}

// price snapshots catalog data into line items and sums the subtotal.
func (s *Service) price(ctx context.Context, draft []DraftItem) ([]Item, decimal.Decimal, error) {
	ids := make([]string, 0, len(draft))
	seen := make(map[string]struct{}, len(draft))
	for _, it := range draft {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(draft))
	subtotal := decimal.Zero
	for i, it := range draft {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, decimal.Zero, &ProductNotFoundError{ProductID: it.ProductID}
		}
		items[i] = Item{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			Price:     p.Price,
			Image:     p.Thumbnail(),
		}
		subtotal = subtotal.Add(items[i].LineTotal())
	}
	return items, subtotal, nil
}

// attachPayment marks o paid when proof is a signed payment of a gateway
// order opened for o.Total. o.Total must be final.
func (s *Service) attachPayment(ctx context.Context, o *Order, proof *PaymentProof) error {
	if proof == nil {
		return nil
	}
	o.RazorpayOrderID = proof.GatewayOrderID
	if proof.GatewayPaymentID == "" {
		return nil
	}
	if o.PaymentMethod != MethodRazorpay {
		return validation.Errorf("payment id is only accepted for %s orders", MethodRazorpay)
	}
	if s.payments == nil {
		return validation.Errorf("online payments are not enabled")
	}
	ok, err := s.payments.VerifyPayment(proof.GatewayOrderID, proof.GatewayPaymentID, proof.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return validation.Errorf("Invalid payment signature")
	}
	if err := s.payments.VerifyAmount(ctx, proof.GatewayOrderID, o.Total); err != nil {
		return err
	}
	o.RazorpayPaymentID = proof.GatewayPaymentID
	o.PaymentStatus = PaymentPaid
	return nil
}

func (s *Service) insert(ctx context.Context, o *Order) error {
	for attempt := 1; ; attempt++ {
		o.OrderID = s.newID()
		err := s.orders.Place(ctx, o)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrDuplicateOrderID) && attempt < maxIDAttempts {
			zctx.From(ctx).Debug("Order id collision, retrying",
				zap.String("order_id", o.OrderID),
				zap.Int("attempt", attempt),
			)
			continue
		}

		var stock *InsufficientStockError
		if errors.As(err, &stock) {
			for _, it := range o.Items {
				if it.ProductID == stock.ProductID {
					stock.Name = it.Name
				}
			}
			return stock
		}
		return errors.Wrap(err, "place order")
	}
}

// Get returns an order by its reference (e.g. NIL-123456) or storage id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	if IsReference(s.cfg.IDPrefix, id) {
		return s.orders.GetByOrderID(ctx, id)
	}
	return s.orders.GetByID(ctx, id)
}

// List returns all orders, newest first.
func (s *Service) List(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

// UpdateStatus applies an admin status change. Confirming an order marks it
// paid. The customer is notified when the order status actually changes.
func (s *Service) UpdateStatus(ctx context.Context, id string, p Patch) (*Order, error) {
	if p.OrderStatus != "" && !p.OrderStatus.Valid() {
		return nil, validation.Errorf("invalid order status %q", p.OrderStatus)
	}
	if p.PaymentStatus != "" && !p.PaymentStatus.Valid() {
		return nil, validation.Errorf("invalid payment status %q", p.PaymentStatus)
	}

	cur, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, pay := cur.Status, cur.PaymentStatus
	if p.OrderStatus != "" {
		next = p.OrderStatus
	}
	if p.PaymentStatus != "" {
		pay = p.PaymentStatus
	}
	if !s.cfg.PermissiveStatus {
		if err := ValidateTransition(cur.Status, next); err != nil {
			return nil, err
		}
	}
	if next == StatusConfirmed {
		pay = PaymentPaid
	}
	if next == cur.Status && pay == cur.PaymentStatus {
		return cur, nil
	}

	updated, err := s.orders.UpdateStatus(ctx, id, cur.Status, next, pay)
	if err != nil {
		return nil, err
	}

	if updated.Status != cur.Status {
		s.statusChanges.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(cur.Status)),
			attribute.String("to", string(updated.Status)),
		))
		zctx.From(ctx).Info("Order status changed",
			zap.String("order_id", updated.OrderID),
			zap.String("from", string(cur.Status)),
			zap.String("to", string(updated.Status)),
		)
		if s.notifier != nil {
			s.notifier.StatusChanged(ctx, *updated)
		}
	}
	return updated, nil
}

// Delete removes an order. Stock is not restored.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}
