package order

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by repositories and the service.
var (
	ErrNotFound         = errors.New("order not found")
	ErrDuplicateOrderID = errors.New("order id already exists")
	ErrStatusConflict   = errors.New("order status changed concurrently")
	ErrPaymentReused    = errors.New("payment already used for another order")
)

// ProductNotFoundError indicates an order references a product that does
// not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError indicates a product has less stock than ordered.
type InsufficientStockError struct {
	ProductID string
	Name      string
}

func (e *InsufficientStockError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("insufficient stock for %s", e.Name)
	}
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// PriceMismatchError indicates the total submitted by the client differs
// from the server-computed total.
type PriceMismatchError struct {
	Submitted decimal.Decimal
	Computed  decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("order total changed: submitted %s, current %s",
		e.Submitted.StringFixed(2), e.Computed.StringFixed(2))
}
