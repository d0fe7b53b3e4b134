package email

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

// MailgunMailer sends through the Mailgun client library. Template variables
// travel in the X-Mailgun-Variables header.
type MailgunMailer struct {
	mg *mailgun.MailgunImpl
}

// NewMailgunMailer defaults to the EU API base when apiBase is empty.
func NewMailgunMailer(domain string, apiKey string, apiBase string) *MailgunMailer {
	mg := mailgun.NewMailgun(domain, apiKey)
	if apiBase == "" {
		apiBase = mailgun.APIBaseEU
	}
	mg.SetAPIBase(apiBase)
	return &MailgunMailer{mg: mg}
}

func (m *MailgunMailer) Send(ctx context.Context, msg *Message) (string, error) {
	message := mailgun.NewMessage(msg.From, msg.Subject, msg.Text, msg.To...)
	if msg.Template != "" {
		message.SetTemplate(msg.Template)
	}
	if len(msg.Variables) > 0 {
		vars, err := json.Marshal(msg.Variables)
		if err != nil {
			return "", fmt.Errorf("failed to encode template variables: %w", err)
		}
		message.AddHeader("X-Mailgun-Variables", string(vars))
	}
	_, id, err := m.mg.Send(ctx, message)
	if err != nil {
		return "", err
	}
	return id, nil
}
