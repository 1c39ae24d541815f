package notify

import (
	"bytes"
	"embed"
	"html/template"

	"github.com/go-faster/errors"

	"github.com/xenking/furniture-store/internal/domain/money"
	"github.com/xenking/furniture-store/internal/domain/order"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"rupees":      money.Rupees,
	"statusEmoji": StatusEmoji,
	"statusColor": func(s order.Status) template.CSS { return template.CSS(StatusColor(s)) },
}).ParseFS(templateFS, "templates/*.html"))

// StatusEmoji returns the emoji shown next to an order status.
func StatusEmoji(s order.Status) string {
	switch s {
	case order.StatusPending:
		return "🕐"
	case order.StatusConfirmed:
		return "✅"
	case order.StatusShipped:
		return "🚚"
	case order.StatusDelivered:
		return "📦"
	case order.StatusCancelled:
		return "❌"
	default:
		return "📋"
	}
}

// StatusColor returns the badge colour of an order status.
func StatusColor(s order.Status) string {
	switch s {
	case order.StatusPending:
		return "#f59e0b"
	case order.StatusConfirmed:
		return "#10b981"
	case order.StatusShipped:
		return "#3b82f6"
	case order.StatusDelivered:
		return "#059669"
	case order.StatusCancelled:
		return "#ef4444"
	default:
		return "#6b7280"
	}
}

type customerView struct {
	Store  string
	Order  order.Order
	Badge  order.Status
	Update bool
}

type operatorView struct {
	Order order.Order
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", errors.Wrapf(err, "render %s", name)
	}
	return buf.String(), nil
}

// ConfirmationMessage builds the customer email sent after checkout.
func ConfirmationMessage(store string, o order.Order) (Message, error) {
	html, err := render("customer.html", customerView{
		Store: store,
		Order: o,
		Badge: order.StatusConfirmed,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      o.Customer.Email,
		Subject: "Order Confirmed! #" + o.OrderID + " — " + store,
		HTML:    html,
	}, nil
}

// StatusUpdateMessage builds the customer email sent when an order moves to
// a new status.
func StatusUpdateMessage(store string, o order.Order) (Message, error) {
	html, err := render("customer.html", customerView{
		Store:  store,
		Order:  o,
		Badge:  o.Status,
		Update: true,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      o.Customer.Email,
		Subject: StatusEmoji(o.Status) + " Order #" + o.OrderID + " — " + string(o.Status),
		HTML:    html,
	}, nil
}

// OperatorMessage builds the packing notification for the shop operator.
func OperatorMessage(to string, o order.Order) (Message, error) {
	html, err := render("operator.html", operatorView{Order: o})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:       to,
		FromName: "Nilambur Orders",
		Subject:  "🔔 New Order #" + o.OrderID + " — " + o.Customer.Name + " — " + money.Rupees(o.Total),
		HTML:     html,
	}, nil
}
