package approval

import (
	"context"
	"fmt"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/infrastructure/email"
	"autolog.dev/autolog/security"
)

// LinkSender emails a signed approval link without loading the record. The
// caller supplies the recipient and sender name.
type LinkSender struct {
	tokens  *security.TokenService
	mailer  email.Mailer
	siteURL string
	from    string
}

func NewLinkSender(tokens *security.TokenService, mailer email.Mailer, siteURL string, from string) *LinkSender {
	return &LinkSender{tokens: tokens, mailer: mailer, siteURL: siteURL, from: from}
}

// Send returns the signed URL that was emailed.
func (s *LinkSender) Send(ctx context.Context, approverEmail, timesheetID, senderName string) (string, error) {
	if approverEmail == "" || timesheetID == "" || senderName == "" {
		return "", core.InvalidInput("Missing required fields")
	}

	signedURL, err := s.tokens.SignedURL(s.siteURL, timesheetID)
	if err != nil {
		return "", err
	}

	_, err = s.mailer.Send(ctx, &email.Message{
		From:    s.from,
		To:      []string{approverEmail},
		Subject: "Timesheet Approval Request",
		Text:    fmt.Sprintf("%s has submitted a timesheet for approval.\n\nReview it here: %s", senderName, signedURL),
	})
	if err != nil {
		return "", err
	}
	return signedURL, nil
}
