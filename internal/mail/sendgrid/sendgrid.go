// Package sendgrid delivers notify.Message values through the SendGrid v3 API.
package sendgrid

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/xenking/furniture-store/internal/domain/notify"
)

// DefaultHost is the SendGrid API host.
const DefaultHost = "https://api.sendgrid.com"

var _ notify.Mailer = (*Mailer)(nil)

// Config configures a Mailer.
type Config struct {
	APIKey   string
	From     string
	FromName string
	// Host overrides DefaultHost.
	Host string
}

// Mailer implements notify.Mailer.
type Mailer struct {
	cfg Config
}

// New returns a Mailer for cfg.
func New(cfg Config) (*Mailer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid: api key is required")
	}
	if cfg.From == "" {
		return nil, errors.New("sendgrid: sender address is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	return &Mailer{cfg: cfg}, nil
}

// Send implements notify.Mailer.
func (m *Mailer) Send(ctx context.Context, msg notify.Message) error {
	fromName := msg.FromName
	if fromName == "" {
		fromName = m.cfg.FromName
	}

	req := sg.GetRequest(m.cfg.APIKey, "/v3/mail/send", m.cfg.Host)
	req.Method = "POST"
	req.Body = mail.GetRequestBody(m.build(fromName, msg))

	resp, err := sg.MakeRequestWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "send to %s", msg.To)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("send to %s: status %d: %s", msg.To, resp.StatusCode, resp.Body)
	}
	return nil
}

func (m *Mailer) build(fromName string, msg notify.Message) *mail.SGMailV3 {
	v3 := mail.NewV3Mail()
	v3.SetFrom(mail.NewEmail(fromName, m.cfg.From))
	v3.Subject = msg.Subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", msg.To))
	v3.AddPersonalizations(p)

	// text/plain must precede text/html.
	if msg.Text != "" {
		v3.AddContent(mail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		v3.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return v3
}
