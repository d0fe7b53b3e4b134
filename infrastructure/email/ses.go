package email

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESMailer sends raw MIME through Amazon SES. Templates are not used; the
// message's Text body is sent as is.
type SESMailer struct {
	client sesAPI
	sender string
}

// NewSESMailer loads the default AWS config. sender, when set, replaces the From address.
func NewSESMailer(ctx context.Context, sender string) (*SESMailer, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &SESMailer{client: ses.NewFromConfig(cfg), sender: sender}, nil
}

func (m *SESMailer) Send(ctx context.Context, msg *Message) (string, error) {
	if m.sender != "" {
		copied := *msg
		copied.From = m.sender
		msg = &copied
	}

	raw, err := BuildEmailBuffer(msg)
	if err != nil {
		return "", err
	}

	res, err := m.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		RawMessage: &types.RawMessage{
			Data: raw.Bytes(),
		},
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(res.MessageId), nil
}

// BuildEmailBuffer renders msg as a quoted-printable text/plain message.
// Addresses must parse as RFC 5322 addresses and the subject is RFC 2047
// encoded, so no field can add headers of its own.
func BuildEmailBuffer(msg *Message) (*bytes.Buffer, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", msg.From, err)
	}
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("message has no recipients")
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
		to = append(to, parsed.String())
	}

	var raw bytes.Buffer
	fmt.Fprintf(&raw, "From: %s\r\n", from.String())
	fmt.Fprintf(&raw, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&raw, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	raw.WriteString("MIME-Version: 1.0\r\n")
	raw.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	raw.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	raw.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&raw)
	if _, err := qp.Write([]byte(msg.Text)); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return &raw, nil
}
