package auth

import "context"

// Message is an outbound notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages out of band. A nil error means the message was
// accepted by the delivery channel.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f NotifierFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
