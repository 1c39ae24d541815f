package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

const orderColumns = `id, order_id, customer_name, customer_email, customer_phone, items,
	subtotal, discount_amount, total, coupon_code,
	shipping_address, shipping_city, shipping_postal_code, shipping_state,
	payment_method, payment_status, order_status, razorpay_order_id, razorpay_payment_id,
	created_at, updated_at`

const (
	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20)`

	// decrementStockSQL never lets stock go below zero: a short product
	// matches no row.
	decrementStockSQL = `UPDATE products SET stock = stock - $2, updated_at = $3
	WHERE id = $1 AND stock >= $2`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByOrderIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, id`

	updateOrderStatusSQL = `UPDATE orders SET order_status = $3, payment_status = $4, updated_at = $5
	WHERE id = $1 AND order_status = $2
	RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

// itemRow is the JSONB shape of a line item.
type itemRow struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
}

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, now: time.Now}
}

// Place inserts the order and decrements stock for every line item in one
// transaction.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	now := r.now().UTC()
	id := uuid.NewString()

	items := make([]itemRow, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemRow{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Image:     it.Image,
		}
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertOrderSQL,
			id, o.OrderID, o.Customer.Name, o.Customer.Email, o.Customer.Phone, items,
			o.Subtotal, o.DiscountAmount, o.Total, o.CouponCode,
			o.Shipping.Address, o.Shipping.City, o.Shipping.PostalCode, o.Shipping.State,
			string(o.PaymentMethod), string(o.PaymentStatus), string(o.Status),
			o.RazorpayOrderID, o.RazorpayPaymentID, now,
		)
		if err != nil {
			if uniqueViolationOn(err, "orders_order_id_key") {
				return order.ErrDuplicateOrderID
			}
			if uniqueViolationOn(err, "orders_razorpay_payment_id_key") {
				return order.ErrPaymentReused
			}
			return fmt.Errorf("inserting order %q: %w", o.OrderID, err)
		}

		for _, it := range o.Items {
			tag, err := tx.Exec(ctx, decrementStockSQL, it.ProductID, it.Quantity, now)
			if err != nil {
				return fmt.Errorf("decrementing stock of %q: %w", it.ProductID, err)
			}
			if tag.RowsAffected() == 0 {
				return &order.InsufficientStockError{ProductID: it.ProductID}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetByID returns an order by its row id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, getOrderSQL, id)
}

// GetByOrderID returns an order by its human-facing reference.
func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.getOne(ctx, getOrderByOrderIDSQL, orderID)
}

func (r *OrderRepository) getOne(ctx context.Context, query, arg string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", arg, err)
	}
	return &o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus performs a compare-and-set on the order status.
func (r *OrderRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to order.Status,
	payment order.PaymentStatus,
) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, updateOrderStatusSQL, id, string(from), string(to), string(payment), r.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err == nil {
		return &o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking order %q: %w", id, err)
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrStatusConflict
}

// Delete removes an order without restoring stock.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o                       order.Order
		items                   []itemRow
		method, payment, status string
	)
	err := row.Scan(
		&o.ID, &o.OrderID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone, &items,
		&o.Subtotal, &o.DiscountAmount, &o.Total, &o.CouponCode,
		&o.Shipping.Address, &o.Shipping.City, &o.Shipping.PostalCode, &o.Shipping.State,
		&method, &payment, &status, &o.RazorpayOrderID, &o.RazorpayPaymentID,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, err
	}

	o.PaymentMethod = order.PaymentMethod(method)
	o.PaymentStatus = order.PaymentStatus(payment)
	o.Status = order.Status(status)
	o.Items = make([]order.Item, len(items))
	for i, it := range items {
		o.Items[i] = order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Image:     it.Image,
		}
	}
	return o, nil
}
