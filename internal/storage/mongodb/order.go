package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/furniture-store/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

type orderItemDoc struct {
	ProductID string               `bson:"productId"`
	Name      string               `bson:"name"`
	Quantity  int                  `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
	Image     string               `bson:"image,omitempty"`
}

type customerDoc struct {
	Name  string `bson:"name"`
	Email string `bson:"email"`
	Phone string `bson:"phone"`
}

type shippingDoc struct {
	Address    string `bson:"address"`
	City       string `bson:"city"`
	PostalCode string `bson:"postalCode"`
	State      string `bson:"state,omitempty"`
}

type orderDoc struct {
	ID                primitive.ObjectID   `bson:"_id"`
	OrderID           string               `bson:"orderId"`
	CustomerInfo      customerDoc          `bson:"customerInfo"`
	Items             []orderItemDoc       `bson:"items"`
	Subtotal          primitive.Decimal128 `bson:"subtotal"`
	DiscountAmount    primitive.Decimal128 `bson:"discountAmount"`
	Total             primitive.Decimal128 `bson:"total"`
	CouponCode        string               `bson:"couponCode,omitempty"`
	ShippingAddress   shippingDoc          `bson:"shippingAddress"`
	PaymentMethod     string               `bson:"paymentMethod"`
	PaymentStatus     string               `bson:"paymentStatus"`
	OrderStatus       string               `bson:"orderStatus"`
	RazorpayOrderID   string               `bson:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string               `bson:"razorpayPaymentId,omitempty"`
	CreatedAt         time.Time            `bson:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt"`
}

func newOrderDoc(o *order.Order, oid primitive.ObjectID, now time.Time) orderDoc {
	items := make([]orderItemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemDoc{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     toDecimal128(it.Price),
			Image:     it.Image,
		}
	}
	return orderDoc{
		ID:      oid,
		OrderID: o.OrderID,
		CustomerInfo: customerDoc{
			Name:  o.Customer.Name,
			Email: o.Customer.Email,
			Phone: o.Customer.Phone,
		},
		Items:          items,
		Subtotal:       toDecimal128(o.Subtotal),
		DiscountAmount: toDecimal128(o.DiscountAmount),
		Total:          toDecimal128(o.Total),
		CouponCode:     o.CouponCode,
		ShippingAddress: shippingDoc{
			Address:    o.Shipping.Address,
			City:       o.Shipping.City,
			PostalCode: o.Shipping.PostalCode,
			State:      o.Shipping.State,
		},
		PaymentMethod:     string(o.PaymentMethod),
		PaymentStatus:     string(o.PaymentStatus),
		OrderStatus:       string(o.Status),
		RazorpayOrderID:   o.RazorpayOrderID,
		RazorpayPaymentID: o.RazorpayPaymentID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (d *orderDoc) toDomain() order.Order {
	o := order.Order{
		ID:      d.ID.Hex(),
		OrderID: d.OrderID,
		Customer: order.CustomerInfo{
			Name:  d.CustomerInfo.Name,
			Email: d.CustomerInfo.Email,
			Phone: d.CustomerInfo.Phone,
		},
		Items:          make([]order.Item, len(d.Items)),
		Subtotal:       fromDecimal128(d.Subtotal),
		DiscountAmount: fromDecimal128(d.DiscountAmount),
		Total:          fromDecimal128(d.Total),
		CouponCode:     d.CouponCode,
		Shipping: order.ShippingAddress{
			Address:    d.ShippingAddress.Address,
			City:       d.ShippingAddress.City,
			PostalCode: d.ShippingAddress.PostalCode,
			State:      d.ShippingAddress.State,
		},
		PaymentMethod:     order.PaymentMethod(d.PaymentMethod),
		PaymentStatus:     order.PaymentStatus(d.PaymentStatus),
		Status:            order.Status(d.OrderStatus),
		RazorpayOrderID:   d.RazorpayOrderID,
		RazorpayPaymentID: d.RazorpayPaymentID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
	for i, it := range d.Items {
		o.Items[i] = order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     fromDecimal128(it.Price),
			Image:     it.Image,
		}
	}
	return o
}

// OrderRepository implements order.Repository backed by MongoDB.
type OrderRepository struct {
	client   *mongo.Client
	orders   *mongo.Collection
	products *mongo.Collection
	now      func() time.Time
}

// NewOrderRepository returns an OrderRepository using db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{
		client:   db.Client(),
		orders:   db.Collection(ordersCollection),
		products: db.Collection(productsCollection),
		now:      time.Now,
	}
}

// Place inserts the order and decrements stock for every line item in one
// transaction.
func (r *OrderRepository) Place(ctx context.Context, o *order.Order) error {
	oid := primitive.NewObjectID()
	now := r.now().UTC().Truncate(time.Millisecond)
	doc := newOrderDoc(o, oid, now)

	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := r.orders.InsertOne(sc, doc); err != nil {
			if duplicateKeyOn(err, paymentIDIndex) {
				return nil, order.ErrPaymentReused
			}
			if mongo.IsDuplicateKeyError(err) {
				return nil, order.ErrDuplicateOrderID
			}
			return nil, fmt.Errorf("inserting order %q: %w", o.OrderID, err)
		}

		for _, it := range o.Items {
			pid, ok := objectID(it.ProductID)
			if !ok {
				return nil, &order.InsufficientStockError{ProductID: it.ProductID}
			}
			res, err := r.products.UpdateOne(sc,
				bson.M{"_id": pid, "stock": bson.M{"$gte": it.Quantity}},
				bson.M{"$inc": bson.M{"stock": -it.Quantity}, "$set": bson.M{"updatedAt": now}},
			)
			if err != nil {
				return nil, fmt.Errorf("decrementing stock of %q: %w", it.ProductID, err)
			}
			if res.MatchedCount == 0 {
				return nil, &order.InsufficientStockError{ProductID: it.ProductID}
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	o.ID = oid.Hex()
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetByID returns an order by its document id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, order.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// GetByOrderID returns an order by its human-facing reference.
func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*order.Order, error) {
	var doc orderDoc
	if err := r.orders.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o := doc.toDomain()
	return &o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	cur, err := r.orders.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding orders: %w", err)
	}
	orders := make([]order.Order, len(docs))
	for i := range docs {
		orders[i] = docs[i].toDomain()
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
	oid, ok := objectID(id)
	if !ok {
		return nil, order.ErrNotFound
	}

	var doc orderDoc
	err := r.orders.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "orderStatus": string(from)},
		bson.M{"$set": bson.M{
			"orderStatus":   string(to),
			"paymentStatus": string(payment),
			"updatedAt":     r.now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		o := doc.toDomain()
		return &o, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	n, err := r.orders.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, fmt.Errorf("checking order %q: %w", id, err)
	}
	if n == 0 {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrStatusConflict
}

// Delete removes an order without restoring stock.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return order.ErrNotFound
	}
	res, err := r.orders.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}
