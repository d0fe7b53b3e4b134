package email

import (
	"context"
	"fmt"
)

type Message struct {
	From    string
	To      []string
	Subject string
	Text    string

	// Template names a provider-side template. Providers without template
	// support send Text instead.
	Template  string
	Variables map[string]string
}

// Mailer delivers a message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

// NoReplySender returns the `Autolog <no-reply@domain>` sender address.
func NoReplySender(domain string) string {
	return fmt.Sprintf("Autolog <no-reply@%s>", domain)
}
