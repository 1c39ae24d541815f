// Package payment creates gateway orders and verifies signed payment
// confirmations. Signature verification is the only server-side trust
// boundary in the checkout flow.
package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/validation"
)

// ErrGateway is matched by every GatewayError.
var ErrGateway = errors.New("payment gateway error")

// GatewayError wraps a failure of the external payment provider.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrGateway) true for any GatewayError.
func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// CreateOrderRequest is sent to the gateway. Amount is in minor units.
type CreateOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
}

// GatewayOrder is the provider-side transaction created before the customer
// pays. Amount is in minor units.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// Gateway is the payment provider API.
type Gateway interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*GatewayOrder, error)
	FetchOrder(ctx context.Context, id string) (*GatewayOrder, error)
}

// Service wraps a Gateway with amount conversion and signature checks.
type Service struct {
	gateway  Gateway
	secret   []byte
	currency string
	receipt  func() string
}

// NewService creates a payment Service. secret is the gateway key secret used
// to sign payment confirmations; currency is the default when a request
// names none.
func NewService(gateway Gateway, secret, currency string) *Service {
	return &Service{
		gateway:  gateway,
		secret:   []byte(secret),
		currency: currency,
		receipt:  newReceipt,
	}
}

// CreateOrder converts amount (major units) to minor units and creates a
// gateway order for it.
func (s *Service) CreateOrder(ctx context.Context, amount decimal.Decimal, currency string) (*GatewayOrder, error) {
	if !amount.IsPositive() {
		return nil, validation.Errorf("Amount is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = s.currency
	}

	req := CreateOrderRequest{
		Amount:   MinorUnits(amount),
		Currency: currency,
		Receipt:  s.receipt(),
	}

	o, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		return nil, gatewayError("create order", err)
	}
	if o == nil || o.ID == "" {
		return nil, &GatewayError{Op: "create order", Err: errors.New("empty order id")}
	}
	return o, nil
}

// VerifyAmount checks with the gateway that gatewayOrderID was opened for
// exactly amount (major units) in the configured currency. A signed payment
// only proves the customer paid that gateway order, not what it was for.
func (s *Service) VerifyAmount(ctx context.Context, gatewayOrderID string, amount decimal.Decimal) error {
	if gatewayOrderID == "" {
		return validation.Required("razorpay_order_id")
	}
	o, err := s.gateway.FetchOrder(ctx, gatewayOrderID)
	if err != nil {
		return gatewayError("fetch order", err)
	}
	if o == nil || o.ID != gatewayOrderID {
		return &GatewayError{Op: "fetch order", Err: errors.Errorf("unexpected order for %q", gatewayOrderID)}
	}
	if o.Amount != MinorUnits(amount) || !strings.EqualFold(o.Currency, s.currency) {
		return validation.Errorf("Payment amount does not match the order total")
	}
	return nil
}

// VerifyPayment reports whether signature is the HMAC-SHA256 of
// orderID|paymentID under the gateway secret. A mismatch is (false, nil);
// an error is returned only for missing input.
func (s *Service) VerifyPayment(orderID, paymentID, signature string) (bool, error) {
	switch {
	case orderID == "":
		return false, validation.Required("razorpay_order_id")
	case paymentID == "":
		return false, validation.Required("razorpay_payment_id")
	case signature == "":
		return false, validation.Required("razorpay_signature")
	}
	return Verify(s.secret, orderID, paymentID, signature), nil
}

// MinorUnits converts a major-unit amount to whole minor units (paise).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func gatewayError(op string, err error) error {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	return &GatewayError{Op: op, Err: err}
}

func newReceipt() string {
	var b [5]byte
	_, _ = rand.Read(b[:])
	return "receipt_" + hex.EncodeToString(b[:])
}
