//go:build integration

package main

import (
	"net/http"
	"regexp"
	"testing"
)

var orderIDPattern = regexp.MustCompile(`^NIL-\d{6}$`)

type orderBody struct {
	Order orderResponse `json:"order"`
}

func orderPayload(productID string, quantity int, coupon string, total float64) map[string]any {
	return map[string]any{
		"customerInfo": map[string]string{
			"name":  "Anjali Menon",
			"email": "anjali@example.com",
			"phone": "9876543210",
		},
		"shippingAddress": map[string]string{
			"address":    "12 Teak Lane",
			"city":       "Nilambur",
			"postalCode": "679329",
			"state":      "Kerala",
		},
		"items":         []map[string]any{{"productId": productID, "quantity": quantity}},
		"paymentMethod": "COD",
		"couponCode":    coupon,
		"total":         total,
	}
}

func TestPlaceOrder_Rejected(t *testing.T) {
	dining := productByName(t, "6 Seater Dining Set")

	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "UnknownProduct", body: orderPayload("missing", 1, "", 100)},
		{name: "PriceMismatch", body: orderPayload(dining.ID, 1, "", 100)},
		{name: "OverStock", body: orderPayload(dining.ID, 500, "", 500*36999)},
		{name: "EmptyCart", body: map[string]any{"items": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doPost(t, "/api/orders", tt.body)
			defer resp.Body.Close()
			expectStatus(t, resp, http.StatusBadRequest)

			if decodeJSON[envelope](t, resp).Success {
				t.Error("expected success=false")
			}
		})
	}
}

func TestOrderLifecycle(t *testing.T) {
	dining := productByName(t, "6 Seater Dining Set")

	// 36999 - floor(36999 * 10%) = 33300
	resp := doPost(t, "/api/orders", orderPayload(dining.ID, 1, "WELCOME10", 33300))
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	placed := decodeJSON[orderBody](t, resp).Order
	if !orderIDPattern.MatchString(placed.OrderID) {
		t.Errorf("order id %q does not match %s", placed.OrderID, orderIDPattern)
	}
	if placed.Subtotal != 36999 || placed.DiscountAmount != 3699 || placed.Total != 33300 {
		t.Errorf("amounts: got %v - %v = %v", placed.Subtotal, placed.DiscountAmount, placed.Total)
	}
	if placed.OrderStatus != "Pending" || placed.PaymentStatus != "Pending" {
		t.Errorf("status: got %s/%s", placed.OrderStatus, placed.PaymentStatus)
	}

	if got := productByName(t, dining.Name).Stock; got != dining.Stock-1 {
		t.Errorf("stock: got %d, want %d", got, dining.Stock-1)
	}

	token := adminToken(t)

	list := do(t, http.MethodGet, "/api/orders", nil, token)
	defer list.Body.Close()
	expectStatus(t, list, http.StatusOK)
	orders := decodeJSON[struct {
		Orders []orderResponse `json:"orders"`
	}](t, list).Orders
	found := false
	for _, o := range orders {
		found = found || o.ID == placed.ID
	}
	if !found {
		t.Fatalf("order %s missing from admin list", placed.ID)
	}

	confirm := do(t, http.MethodPut, "/api/orders/"+placed.ID, map[string]string{"orderStatus": "Confirmed"}, token)
	defer confirm.Body.Close()
	expectStatus(t, confirm, http.StatusOK)
	confirmed := decodeJSON[orderBody](t, confirm).Order
	if confirmed.OrderStatus != "Confirmed" || confirmed.PaymentStatus != "Paid" {
		t.Errorf("after confirm: got %s/%s", confirmed.OrderStatus, confirmed.PaymentStatus)
	}

	back := do(t, http.MethodPut, "/api/orders/"+placed.ID, map[string]string{"orderStatus": "Pending"}, token)
	defer back.Body.Close()
	expectStatus(t, back, http.StatusBadRequest)

	get := doGet(t, "/api/orders/"+placed.ID)
	defer get.Body.Close()
	expectStatus(t, get, http.StatusOK)
	if got := decodeJSON[orderBody](t, get).Order.OrderStatus; got != "Confirmed" {
		t.Errorf("stored status: got %s, want Confirmed", got)
	}
}

func TestListOrders_RequiresAdmin(t *testing.T) {
	resp := doGet(t, "/api/orders")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestAdminLogin_WrongPassword(t *testing.T) {
	resp := doPost(t, "/api/admin/login", map[string]string{"email": adminEmail, "password": "wrong"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}
