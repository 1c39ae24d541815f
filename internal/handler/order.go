package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/xenking/furniture-store/internal/domain/order"
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	// ID and MongoID are accepted for carts that store the product
	// document as-is.
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Quantity int    `json:"quantity"`
}

func (r orderItemRequest) productID() string {
	for _, id := range []string{r.ProductID, r.ID, r.MongoID} {
		if id != "" {
			return id
		}
	}
	return ""
}

type orderRequest struct {
	CustomerInfo    customerJSON       `json:"customerInfo"`
	Items           []orderItemRequest `json:"items"`
	ShippingAddress shippingJSON       `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	CouponCode      string             `json:"couponCode"`
	// Total is the amount the customer was shown. Subtotal and discount
	// are always recomputed and any client values are ignored.
	Total             *decimal.Decimal `json:"total"`
	RazorpayOrderID   string           `json:"razorpayOrderId"`
	RazorpayPaymentID string           `json:"razorpayPaymentId"`
	RazorpaySignature string           `json:"razorpaySignature"`
}

func (r *orderRequest) draft() order.Draft {
	d := order.Draft{
		Customer:      order.CustomerInfo(r.CustomerInfo),
		Items:         make([]order.DraftItem, len(r.Items)),
		Shipping:      order.ShippingAddress(r.ShippingAddress),
		PaymentMethod: order.PaymentMethod(r.PaymentMethod),
		CouponCode:    r.CouponCode,
		ClientTotal:   r.Total,
	}
	for i, it := range r.Items {
		d.Items[i] = order.DraftItem{ProductID: it.productID(), Quantity: it.Quantity}
	}
	if r.RazorpayOrderID != "" || r.RazorpayPaymentID != "" || r.RazorpaySignature != "" {
		d.Payment = &order.PaymentProof{
			GatewayOrderID:   r.RazorpayOrderID,
			GatewayPaymentID: r.RazorpayPaymentID,
			Signature:        r.RazorpaySignature,
		}
	}
	return d
}

// PlaceOrder prices the submitted cart on the server, stores the order and
// returns it.
func (h *Handler) PlaceOrder(c *gin.Context) {
	var req orderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.Orders.PlaceOrder(c, req.draft())
	if err != nil {
		respondError(c, err, "Failed to create order")
		return
	}
	respond(c, http.StatusCreated, gin.H{"order": toOrderJSON(o)})
}

// GetOrder looks an order up by its reference or storage id. It backs
// order tracking and needs no session.
func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.Orders.Get(c, c.Param("id"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	respond(c, http.StatusOK, gin.H{"order": toOrderJSON(o)})
}

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.Orders.List(c)
	if err != nil {
		respondError(c, err, "Failed to fetch orders")
		return
	}
	respond(c, http.StatusOK, gin.H{"orders": mapSlice(orders, toOrderJSON)})
}

type orderPatchRequest struct {
	OrderStatus   string `json:"orderStatus"`
	PaymentStatus string `json:"paymentStatus"`
}

func (h *Handler) UpdateOrder(c *gin.Context) {
	var req orderPatchRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.Orders.UpdateStatus(c, c.Param("id"), order.Patch{
		OrderStatus:   order.Status(req.OrderStatus),
		PaymentStatus: order.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		respondError(c, err, "Failed to update order")
		return
	}
	respond(c, http.StatusOK, gin.H{"order": toOrderJSON(o)})
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	if err := h.Orders.Delete(c, c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete order")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Order deleted successfully"})
}
