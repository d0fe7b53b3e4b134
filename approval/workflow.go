package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"autolog.dev/autolog/core"
	"autolog.dev/autolog/infrastructure/communication"
	"autolog.dev/autolog/infrastructure/email"
	"autolog.dev/autolog/security"
)

const (
	RequestTemplate = "request template"

	msgEmailSent = "Email sent successfully"
	msgApproved  = "Timesheet approved successfully"
)

// Workflow drives the request/approve handshake for a timesheet. Calls for the
// same path are collapsed into one execution; different paths run concurrently.
type Workflow struct {
	store    core.Store
	tokens   *security.TokenService
	mailer   email.Mailer
	notifier communication.Notifier
	siteURL  string
	from     string
	log      zerolog.Logger

	group singleflight.Group
}

type Options struct {
	Store    core.Store
	Tokens   *security.TokenService
	Mailer   email.Mailer
	Notifier communication.Notifier
	SiteURL  string
	From     string
	Logger   zerolog.Logger
}

func NewWorkflow(opts Options) *Workflow {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = communication.Noop{}
	}
	return &Workflow{
		store:    opts.Store,
		tokens:   opts.Tokens,
		mailer:   opts.Mailer,
		notifier: notifier,
		siteURL:  opts.SiteURL,
		from:     opts.From,
		log:      opts.Logger.With().Str("component", "approval").Logger(),
	}
}

type RecordSummary struct {
	User          string `json:"user"`
	ApproversName string `json:"approvers_name"`
	Period        string `json:"period"`
}

type RequestResult struct {
	Message   string        `json:"message"`
	SignedURL string        `json:"signedUrl"`
	Record    RecordSummary `json:"record"`
}

// RequestApproval emails the approver a signed link for path. Only records in
// PendingApproval are accepted.
func (w *Workflow) RequestApproval(ctx context.Context, path string) (*RequestResult, error) {
	if path == "" {
		return nil, core.InvalidInput("Missing timesheet ID")
	}

	v, err, shared := w.group.Do("request:"+path, func() (any, error) {
		return w.requestApproval(context.WithoutCancel(ctx), path)
	})
	if shared {
		w.log.Debug().Str("path", path).Msg("joined in-flight approval request")
	}
	if err != nil {
		return nil, err
	}
	return v.(*RequestResult), nil
}

func (w *Workflow) requestApproval(ctx context.Context, path string) (*RequestResult, error) {
	record, err := w.load(ctx, path)
	if err != nil {
		return nil, w.upstream("Error processing request", path, err)
	}
	if err := record.CanRequestApproval(); err != nil {
		return nil, err
	}

	signedURL, err := w.tokens.SignedURL(w.siteURL, path)
	if err != nil {
		return nil, w.upstream("Error processing request", path, err)
	}

	msg := &email.Message{
		From:     w.from,
		To:       []string{record.ApproverEmail()},
		Subject:  fmt.Sprintf("%s Has Requested You Approve Their Timesheet for %s", record.User.Name, record.MonthYear),
		Text:     fmt.Sprintf("%s has requested that you approve their timesheet for %s.\n\nReview it here: %s", record.User.Name, record.MonthYear, signedURL),
		Template: RequestTemplate,
		Variables: map[string]string{
			"approvers_name":    record.ApproverName(),
			"autolog_user_name": record.User.Name,
			"period":            record.MonthYear,
			"signed_url":        signedURL,
		},
	}
	id, err := w.mailer.Send(ctx, msg)
	if err != nil {
		return nil, w.upstream("Failed to send email", path, err)
	}
	w.log.Info().Str("path", path).Str("message_id", id).Msg("approval request sent")

	return &RequestResult{
		Message:   msgEmailSent,
		SignedURL: signedURL,
		Record: RecordSummary{
			User:          record.User.Name,
			ApproversName: record.ApproverName(),
			Period:        record.MonthYear,
		},
	}, nil
}

// Approve verifies token against path, marks the record approved and emails the
// user. Approving again re-applies the update; the email is only sent until one
// has been delivered.
func (w *Workflow) Approve(ctx context.Context, path string, token string) (string, error) {
	if path == "" || token == "" {
		return "", core.InvalidInput("Invalid request parameters")
	}
	if !w.tokens.Verify(path, token) {
		return "", core.Forbidden("Invalid or expired token")
	}

	_, err, _ := w.group.Do("approve:"+path, func() (any, error) {
		return nil, w.approve(context.WithoutCancel(ctx), path)
	})
	if err != nil {
		return "", err
	}
	return msgApproved, nil
}

func (w *Workflow) approve(ctx context.Context, path string) error {
	record, err := w.load(ctx, path)
	if err != nil {
		return w.upstream("Failed to approve timesheet", path, err)
	}
	if err := record.CanApprove(); err != nil {
		return err
	}

	if err := w.store.SetApproved(ctx, path); err != nil {
		return w.upstream("Failed to approve timesheet", path, err)
	}

	// the flag is only set after a successful send, so a failed email is
	// retried by approving again
	if record.ConfirmationSent {
		w.log.Info().Str("path", path).Msg("timesheet already approved")
		return nil
	}

	msg := &email.Message{
		From:    w.from,
		To:      []string{record.User.Email},
		Subject: "Your Timesheet has been Approved",
		Text:    fmt.Sprintf("Congratulations %s, your timesheet for %s has been approved by %s!", record.User.Name, record.MonthYear, record.ApproverName()),
	}
	if _, err := w.mailer.Send(ctx, msg); err != nil {
		return w.upstream("Failed to approve timesheet", path, err)
	}
	if err := w.store.MarkConfirmationSent(ctx, path); err != nil {
		w.log.Warn().Err(err).Str("path", path).Msg("failed to record confirmation email")
	}

	w.log.Info().Str("path", path).Msg("timesheet approved")
	if err := w.notifier.Info(fmt.Sprintf("Timesheet %s for %s (%s) approved by %s", path, record.User.Name, record.MonthYear, record.ApproverName())); err != nil {
		w.log.Warn().Err(err).Msg("failed to notify")
	}
	return nil
}

// load treats a missing record as incomplete.
func (w *Workflow) load(ctx context.Context, path string) (*core.Timesheet, error) {
	record, err := w.store.FindByPath(ctx, path)
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		return nil, &core.IncompleteRecordError{Missing: []string{"record"}}
	}
	return record, err
}

// upstream passes typed errors through and wraps everything else.
func (w *Workflow) upstream(prefix string, path string, err error) error {
	var se core.StatusError
	if errors.As(err, &se) {
		return err
	}
	w.log.Error().Err(err).Str("path", path).Msg(prefix)
	if nerr := w.notifier.Error(fmt.Sprintf("%s (%s): %s", prefix, path, err)); nerr != nil {
		w.log.Warn().Err(nerr).Msg("failed to notify")
	}
	return core.Upstream(prefix, err)
}
