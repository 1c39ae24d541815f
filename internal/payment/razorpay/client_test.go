package razorpay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/furniture-store/internal/domain/payment"
)

func TestClient_CreateOrder(t *testing.T) {
	var got struct {
		user, pass string
		body       []byte
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/orders", r.URL.Path)
		got.user, got.pass, _ = r.BasicAuth()
		got.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"order_9A33XWu170gUtm","entity":"order","amount":4500000,`+
			`"amount_paid":0,"currency":"INR","receipt":"receipt_ab12","offer_id":null,`+
			`"status":"created","notes":[],"created_at":1700000000}`)
	}))
	defer srv.Close()

	c := New("rzp_test_key", "secret", WithBaseURL(srv.URL+"/v1/"))
	o, err := c.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Amount: 4500000, Currency: "INR", Receipt: "receipt_ab12",
	})
	require.NoError(t, err)
	assert.Equal(t, &payment.GatewayOrder{
		ID:       "order_9A33XWu170gUtm",
		Amount:   4500000,
		Currency: "INR",
		Receipt:  "receipt_ab12",
		Status:   "created",
	}, o)

	assert.Equal(t, "rzp_test_key", got.user)
	assert.Equal(t, "secret", got.pass)

	var (
		amount   int64
		currency string
		receipt  string
	)
	require.NoError(t, jx.DecodeBytes(got.body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "amount":
			amount, err = d.Int64()
		case "currency":
			currency, err = d.Str()
		case "receipt":
			receipt, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}))
	assert.Equal(t, int64(4500000), amount)
	assert.Equal(t, "INR", currency)
	assert.Equal(t, "receipt_ab12", receipt)
}

func TestClient_CreateOrderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api error",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":"BAD_REQUEST_ERROR","description":"The amount must be atleast INR 1.00","field":null}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
				assert.Equal(t, "BAD_REQUEST_ERROR", apiErr.Code)
				assert.Contains(t, apiErr.Description, "amount")
			},
		},
		{
			name:   "unauthorized without body",
			status: http.StatusUnauthorized,
			body:   ``,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
			},
		},
		{
			name:   "malformed success body",
			status: http.StatusOK,
			body:   `{"id":`,
			check:  func(t *testing.T, err error) { require.Error(t, err) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := New("k", "s", WithBaseURL(srv.URL)).CreateOrder(context.Background(),
				payment.CreateOrderRequest{Amount: 100, Currency: "INR"})
			require.True(t, errors.Is(err, payment.ErrGateway))
			tt.check(t, err)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New("k", "s", WithBaseURL(srv.URL)).CreateOrder(context.Background(),
		payment.CreateOrderRequest{Amount: 100, Currency: "INR"})
	require.ErrorIs(t, err, payment.ErrGateway)
}

func TestClient_FetchOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/v1/orders/order_9A33XWu170gUtm", r.URL.Path)
		user, _, _ := r.BasicAuth()
		require.Equal(t, "rzp_test_key", user)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"order_9A33XWu170gUtm","entity":"order","amount":4500000,`+
			`"amount_paid":4500000,"amount_due":0,"currency":"INR","receipt":null,`+
			`"status":"paid","attempts":1,"created_at":1700000000}`)
	}))
	defer srv.Close()

	c := New("rzp_test_key", "secret", WithBaseURL(srv.URL+"/v1"))
	o, err := c.FetchOrder(context.Background(), "order_9A33XWu170gUtm")
	require.NoError(t, err)
	assert.Equal(t, &payment.GatewayOrder{
		ID:       "order_9A33XWu170gUtm",
		Amount:   4500000,
		Currency: "INR",
		Status:   "paid",
	}, o)
}

func TestClient_FetchOrderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`)
	}))
	defer srv.Close()

	_, err := New("k", "s", WithBaseURL(srv.URL)).FetchOrder(context.Background(), "order_missing")
	require.ErrorIs(t, err, payment.ErrGateway)
	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "fetch order", gwErr.Op)
}
