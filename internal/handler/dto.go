package handler

import (
	"time"

	"github.com/xenking/furniture-store/internal/domain/category"
	"github.com/xenking/furniture-store/internal/domain/coupon"
	"github.com/xenking/furniture-store/internal/domain/order"
	"github.com/xenking/furniture-store/internal/domain/product"
)

// Response documents mirror the storefront's JSON shapes. Money is rendered
// as JSON numbers.

type reviewJSON struct {
	User    string    `json:"user"`
	Rating  int       `json:"rating"`
	Comment string    `json:"comment"`
	Date    time.Time `json:"date"`
}

type productJSON struct {
	ID          string       `json:"_id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Category    string       `json:"category"`
	Images      []string     `json:"images"`
	Stock       int          `json:"stock"`
	Featured    bool         `json:"featured"`
	Ratings     float64      `json:"ratings"`
	Reviews     int          `json:"reviews"`
	UserReviews []reviewJSON `json:"userReviews"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func toProductJSON(p *product.Product) productJSON {
	out := productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.InexactFloat64(),
		Category:    p.Category,
		Images:      p.Images,
		Stock:       p.Stock,
		Featured:    p.Featured,
		Ratings:     p.Ratings,
		Reviews:     p.Reviews,
		UserReviews: make([]reviewJSON, len(p.UserReviews)),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	for i, r := range p.UserReviews {
		out.UserReviews[i] = reviewJSON(r)
	}
	return out
}

type categoryJSON struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Image       string    `json:"image,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toCategoryJSON(c *category.Category) categoryJSON {
	return categoryJSON{
		ID:          c.ID,
		Name:        c.Name,
		Image:       c.Image,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type couponJSON struct {
	ID                 string    `json:"_id"`
	Code               string    `json:"code"`
	DiscountPercentage float64   `json:"discountPercentage"`
	MinCartValue       float64   `json:"minCartValue"`
	ExpiryDate         time.Time `json:"expiryDate"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toCouponJSON(c *coupon.Coupon) couponJSON {
	return couponJSON{
		ID:                 c.ID,
		Code:               c.Code,
		DiscountPercentage: c.DiscountPercentage.InexactFloat64(),
		MinCartValue:       c.MinCartValue.InexactFloat64(),
		ExpiryDate:         c.ExpiryDate,
		IsActive:           c.IsActive,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
}

type customerJSON struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type shippingJSON struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	State      string `json:"state,omitempty"`
}

type orderItemJSON struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

type orderJSON struct {
	ID                string          `json:"_id"`
	OrderID           string          `json:"orderId"`
	CustomerInfo      customerJSON    `json:"customerInfo"`
	Items             []orderItemJSON `json:"items"`
	Subtotal          float64         `json:"subtotal"`
	DiscountAmount    float64         `json:"discountAmount"`
	Total             float64         `json:"total"`
	CouponCode        string          `json:"couponCode,omitempty"`
	ShippingAddress   shippingJSON    `json:"shippingAddress"`
	PaymentMethod     string          `json:"paymentMethod"`
	PaymentStatus     string          `json:"paymentStatus"`
	OrderStatus       string          `json:"orderStatus"`
	RazorpayOrderID   string          `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string          `json:"razorpayPaymentId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func toOrderJSON(o *order.Order) orderJSON {
	out := orderJSON{
		ID:                o.ID,
		OrderID:           o.OrderID,
		CustomerInfo:      customerJSON(o.Customer),
		Items:             make([]orderItemJSON, len(o.Items)),
		Subtotal:          o.Subtotal.InexactFloat64(),
		DiscountAmount:    o.DiscountAmount.InexactFloat64(),
		Total:             o.Total.InexactFloat64(),
		CouponCode:        o.CouponCode,
		ShippingAddress:   shippingJSON(o.Shipping),
		PaymentMethod:     string(o.PaymentMethod),
		PaymentStatus:     string(o.PaymentStatus),
		OrderStatus:       string(o.Status),
		RazorpayOrderID:   o.RazorpayOrderID,
		RazorpayPaymentID: o.RazorpayPaymentID,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for i, it := range o.Items {
		out.Items[i] = orderItemJSON{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
			Image:     it.Image,
		}
	}
	return out
}

func mapSlice[T, R any](in []T, f func(*T) R) []R {
	out := make([]R, len(in))
	for i := range in {
		out[i] = f(&in[i])
	}
	return out
}
