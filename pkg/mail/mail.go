package mail

import "context"

// Message is a single outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mailer delivers messages to a transactional email provider.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
