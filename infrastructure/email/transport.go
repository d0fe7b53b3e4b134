package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const MailgunAPIBase = "https://api.mailgun.net/v3"

// Transport posts forms to an HTTP API with basic auth.
type Transport struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
}

func NewTransport(baseURL, username, password string) *Transport {
	return &Transport{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		Password:   password,
		HTTPClient: &http.Client{},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code %d: %s", e.StatusCode, e.Body)
}

// PostForm sends a form-urlencoded POST and returns the response body.
func (t *Transport) PostForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.Username, t.Password)

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// MailgunHTTP calls the Mailgun messages endpoint directly, without the client library.
type MailgunHTTP struct {
	transport *Transport
	domain    string
}

func NewMailgunHTTP(baseURL, domain, apiKey string) *MailgunHTTP {
	if baseURL == "" {
		baseURL = MailgunAPIBase
	}
	return &MailgunHTTP{
		transport: NewTransport(baseURL, "api", apiKey),
		domain:    domain,
	}
}

// Send fails with "Mailgun error: <status text>" on a non-2xx response.
func (m *MailgunHTTP) Send(ctx context.Context, msg *Message) (string, error) {
	form := url.Values{}
	form.Set("from", msg.From)
	for _, to := range msg.To {
		form.Add("to", to)
	}
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Text)

	body, err := m.transport.PostForm(ctx, "/"+m.domain+"/messages", form)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			return "", fmt.Errorf("Mailgun error: %s", http.StatusText(se.StatusCode))
		}
		return "", fmt.Errorf("Mailgun error: %w", err)
	}

	var res struct {
		ID string `json:"id"`
	}
	// the message was accepted even if the body is not the expected JSON
	_ = json.Unmarshal(body, &res)
	return res.ID, nil
}
