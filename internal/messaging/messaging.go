// Package messaging wraps the outbound WhatsApp messenger.
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Service delivers one outbound message and returns the provider message id.
type Service interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending WhatsApp number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// TwilioClient sends WhatsApp messages through the Twilio REST API.
type TwilioClient struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioClient creates the Twilio WhatsApp client. Options left unset
// fall back to the TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and
// TWILIO_FROM_NUMBER environment variables.
func NewTwilioClient(opts ...Option) (*TwilioClient, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioClient{client: client, from: canonicalize(cfg.FromNumber)}, nil
}

// Send delivers a WhatsApp message and returns the Twilio message SID.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(canonicalize(to))
	params.SetFrom(c.from)
	params.SetBody(body)

	resp, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio Send failed", "error", err)
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	slog.Debug("Twilio message sent", "sid", sid)
	return sid, nil
}

// canonicalize normalizes a recipient to the "whatsapp:+<digits>" form
// Twilio expects.
func canonicalize(number string) string {
	number = strings.TrimSpace(number)
	number = strings.TrimPrefix(number, "whatsapp:")
	if !strings.HasPrefix(number, "+") {
		number = "+" + number
	}
	return "whatsapp:" + number
}

// SentMessage is one message recorded by the MockService.
type SentMessage struct {
	To   string
	Body string
}

// MockService records sends for tests.
type MockService struct {
	Sent []SentMessage
	Err  error
}

func (m *MockService) Send(ctx context.Context, to, body string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.Sent = append(m.Sent, SentMessage{To: to, Body: body})
	return fmt.Sprintf("SM%04d", len(m.Sent)), nil
}
