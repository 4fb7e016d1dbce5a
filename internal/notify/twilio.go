package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/Majidul17068/carevoice/internal/models"
)

// TwilioOpts holds configuration options for the Twilio SMS notifier.
type TwilioOpts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// TwilioOption defines a configuration option for the Twilio SMS notifier.
type TwilioOption func(*TwilioOpts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) TwilioOption {
	return func(o *TwilioOpts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) TwilioOption {
	return func(o *TwilioOpts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) TwilioOption {
	return func(o *TwilioOpts) { o.FromNumber = from }
}

// messageCreator is the minimal Twilio API surface used, for testability.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends manager notifications as SMS via the Twilio API.
type TwilioNotifier struct {
	api  messageCreator
	from string
}

// NewTwilioNotifier creates a Twilio SMS notifier. Credentials fall back to
// the TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN / TWILIO_FROM_NUMBER environment
// variables when not provided via options.
func NewTwilioNotifier(opts ...TwilioOption) (*TwilioNotifier, error) {
	var cfg TwilioOpts
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
	slog.Debug("notify.NewTwilioNotifier: config loaded",
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

	return &TwilioNotifier{api: client.Api, from: cfg.FromNumber}, nil
}

// Notify sends the rendered notification to each recipient number. Delivery
// continues past per-recipient failures; the first error is returned for the
// caller to log.
func (n *TwilioNotifier) Notify(ctx context.Context, recipients []string, fields models.NotificationFields) error {
	body := RenderBody(fields)
	var firstErr error
	for _, to := range recipients {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(to)
		params.SetFrom(n.from)
		params.SetBody(body)

		if _, err := n.api.CreateMessage(params); err != nil {
			slog.Error("TwilioNotifier.Notify: send failed", "to", to, "conversationID", fields.ConversationID, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to notify %s: %w", to, err)
			}
			continue
		}
		slog.Debug("TwilioNotifier.Notify: notification sent", "to", to, "conversationID", fields.ConversationID)
	}
	return firstErr
}
