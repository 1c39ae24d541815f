// Package razorpay is a minimal client for the Razorpay Orders API.
package razorpay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/furniture-store/internal/domain/payment"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.razorpay.com/v1"

var _ payment.Gateway = (*Client)(nil)

// APIError is an error body returned by the API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: %s: %s (status %d)", e.Code, e.Description, e.StatusCode)
}

// Client talks to the Orders API with basic auth.
type Client struct {
	baseURL string
	keyID   string
	secret  string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New returns a Client authenticated with keyID and secret.
func New(keyID, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		keyID:   keyID,
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CreateOrder implements payment.Gateway.
func (c *Client) CreateOrder(ctx context.Context, req payment.CreateOrderRequest) (*payment.GatewayOrder, error) {
	return c.order(ctx, "create order", http.MethodPost, "/orders", encodeCreateOrder(req))
}

// FetchOrder implements payment.Gateway.
func (c *Client) FetchOrder(ctx context.Context, id string) (*payment.GatewayOrder, error) {
	return c.order(ctx, "fetch order", http.MethodGet, "/orders/"+url.PathEscape(id), nil)
}

// order performs a call of the Orders API that answers with an order entity.
func (c *Client) order(ctx context.Context, op, method, path string, body []byte) (*payment.GatewayOrder, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	httpReq.SetBasicAuth(c.keyID, c.secret)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &payment.GatewayError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &payment.GatewayError{Op: op, Err: errors.Wrap(err, "read body")}
	}

	if resp.StatusCode >= 300 {
		return nil, &payment.GatewayError{Op: op, Err: decodeError(resp.StatusCode, data)}
	}

	o, err := decodeOrder(data)
	if err != nil {
		return nil, &payment.GatewayError{Op: op, Err: errors.Wrap(err, "decode order")}
	}
	return o, nil
}

func encodeCreateOrder(req payment.CreateOrderRequest) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("amount")
	e.Int64(req.Amount)
	e.FieldStart("currency")
	e.Str(req.Currency)
	if req.Receipt != "" {
		e.FieldStart("receipt")
		e.Str(req.Receipt)
	}
	e.ObjEnd()
	return e.Bytes()
}

func decodeOrder(data []byte) (*payment.GatewayOrder, error) {
	var o payment.GatewayOrder
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "id":
			o.ID, err = d.Str()
		case "amount":
			o.Amount, err = d.Int64()
		case "currency":
			o.Currency, err = d.Str()
		case "receipt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o.Receipt, err = d.Str()
		case "status":
			o.Status, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func decodeError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}
	_ = jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "error" {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if d.Next() != jx.String {
				return d.Skip()
			}
			var err error
			switch string(key) {
			case "code":
				apiErr.Code, err = d.Str()
			case "description":
				apiErr.Description, err = d.Str()
			default:
				return d.Skip()
			}
			return err
		})
	})
	return apiErr
}
