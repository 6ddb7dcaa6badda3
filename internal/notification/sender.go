package notification

import "context"

// Sender delivers a plain-text message to a set of recipients.
type Sender interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}
