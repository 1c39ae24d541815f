package order

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment stage of an order.
type Status string

// Order lifecycle.
const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus tracks whether money has been received.
type PaymentStatus string

// Payment states.
const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

// Supported payment methods.
const (
	MethodRazorpay PaymentMethod = "Razorpay"
	MethodCOD      PaymentMethod = "COD"
	MethodWhatsApp PaymentMethod = "WhatsApp"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodRazorpay, MethodCOD, MethodWhatsApp:
		return true
	}
	return false
}

// CustomerInfo identifies who placed the order.
type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

// ShippingAddress is where the order is delivered.
type ShippingAddress struct {
	Address    string
	City       string
	PostalCode string
	State      string
}

// String renders the address on one line.
func (a ShippingAddress) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Address, a.City, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	s := strings.Join(parts, ", ")
	if a.PostalCode != "" {
		s += " - " + a.PostalCode
	}
	return s
}

// Item is a line item snapshot. Name, price and image are copied from the
// catalog when the order is placed and never change afterwards.
type Item struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Image     string
}

// LineTotal returns price × quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is a placed customer order.
type Order struct {
	ID string
	// OrderID is the human-facing reference, e.g. NIL-123456.
	OrderID           string
	Customer          CustomerInfo
	Items             []Item
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	Total             decimal.Decimal
	CouponCode        string
	Shipping          ShippingAddress
	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	Status            Status
	RazorpayOrderID   string
	RazorpayPaymentID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Place inserts o and decrements the stock of every line item's product
	// in one transaction. Each decrement is floor-checked: a product with
	// less stock than the item quantity fails the whole placement with
	// *InsufficientStockError and rolls back the decrements already made.
	// Decrements are therefore not independent per item: items after the
	// first short one are never attempted, and none of them persist.
	// Place assigns o.ID and the timestamps.
	// Returns ErrDuplicateOrderID when o.OrderID is already taken and
	// ErrPaymentReused when o.RazorpayPaymentID is recorded on another order.
	Place(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	// List returns all orders, newest first.
	List(ctx context.Context) ([]Order, error)
	// UpdateStatus sets the order and payment status if the stored order
	// status still equals from, and returns the updated order. Returns
	// ErrStatusConflict if it does not.
	UpdateStatus(ctx context.Context, id string, from, to Status, payment PaymentStatus) (*Order, error)
	// Delete removes the order. Stock is not restored.
	Delete(ctx context.Context, id string) error
}
