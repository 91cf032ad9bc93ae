package hitl

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/VeerkrachtLab/veerkracht/internal/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier pages a human reviewer about a new escalation ticket.
type Notifier interface {
	NotifyEscalation(ctx context.Context, ticket models.EscalationTicket) error
}

// Opts holds configuration options for the Twilio SMS notifier.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
	OnCall     string // reviewer phone number
}

// Option defines a configuration option for the Twilio SMS notifier.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// WithOnCall sets the on-call reviewer phone number.
func WithOnCall(number string) Option {
	return func(o *Opts) { o.OnCall = number }
}

// TwilioNotifier pages the on-call reviewer over SMS.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	onCall string
}

// NewTwilioNotifier creates the notifier. Configuration falls back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, TWILIO_FROM_NUMBER, and
// VEERKRACHT_ONCALL_NUMBER environment variables.
func NewTwilioNotifier(opts ...Option) (*TwilioNotifier, error) {
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
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.OnCall == "" {
		cfg.OnCall = os.Getenv("VEERKRACHT_ONCALL_NUMBER")
	}
	slog.Debug("hitl.NewTwilioNotifier: config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"From_set", cfg.From != "",
		"OnCall_set", cfg.OnCall != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" || cfg.OnCall == "" {
		return nil, fmt.Errorf("from and on-call numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)
	return &TwilioNotifier{client: client, from: cfg.From, onCall: cfg.OnCall}, nil
}

// NotifyEscalation sends the ticket summary as an SMS page.
func (n *TwilioNotifier) NotifyEscalation(ctx context.Context, ticket models.EscalationTicket) error {
	body := fmt.Sprintf("Veerkracht escalatie [%s] ticket %s, sessie %s. Reden: %s",
		ticket.Severity, ticket.ID, ticket.SessionID, ticket.Reason)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(n.onCall)
	params.SetFrom(n.from)
	params.SetBody(body)

	_, err := n.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("TwilioNotifier.NotifyEscalation failed", "ticketID", ticket.ID, "error", err)
		return fmt.Errorf("failed to page reviewer for ticket %s: %w", ticket.ID, err)
	}
	slog.Debug("TwilioNotifier.NotifyEscalation: reviewer paged", "ticketID", ticket.ID)
	return nil
}
