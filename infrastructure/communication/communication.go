package communication

import (
	"fmt"

	"github.com/slack-go/slack"
)

// Notifier posts operator messages.
type Notifier interface {
	Info(message string) error
	Error(message string) error
}

type slackPoster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

type Slack struct {
	client  slackPoster
	options SlackOption
}

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string
}

// Connect returns a Slack notifier, or Noop when token is empty.
func Connect(token string, options SlackOption) Notifier {
	if token == "" {
		return Noop{}
	}
	return NewSlack(token, options)
}

func NewSlack(token string, options SlackOption) *Slack {
	return &Slack{client: slack.New(token), options: options}
}

func (s *Slack) postMessage(channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessage(
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(message string) error {
	return s.postMessage(s.options.InfoChannelID, message)
}

func (s *Slack) Error(message string) error {
	return s.postMessage(s.options.ErrorChannelID, message)
}

type Noop struct{}

func (Noop) Info(string) error  { return nil }
func (Noop) Error(string) error { return nil }
