package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type paymentOrderRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// CreatePaymentOrder opens a gateway order for the checkout amount. The
// response carries the gateway order fields at the top level, which is the
// shape the checkout widget expects.
func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	var req paymentOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.Payments.CreateOrder(c, req.Amount, req.Currency)
	if err != nil {
		respondError(c, err, "Something went wrong creating the Razorpay order")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"id":       o.ID,
		"amount":   o.Amount,
		"currency": o.Currency,
		"receipt":  o.Receipt,
		"status":   o.Status,
	})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	ok, err := h.Payments.VerifyPayment(req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		respondError(c, err, "")
		return
	}
	if !ok {
		fail(c, http.StatusBadRequest, "Invalid signature sent!")
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Payment verified successfully"})
}
