// Package notify renders order emails and delivers them off the request path.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Message is a single outgoing email.
type Message struct {
	To string
	// FromName overrides the transport's default sender name.
	FromName string
	Subject  string
	HTML     string
	Text     string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NopMailer drops every message with a warning. Used when no mail transport
// is configured.
type NopMailer struct {
	Logger *zap.Logger
}

// Send implements Mailer.
func (m NopMailer) Send(_ context.Context, msg Message) error {
	if m.Logger != nil {
		m.Logger.Warn("Mail transport not configured, dropping message",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
		)
	}
	return nil
}
