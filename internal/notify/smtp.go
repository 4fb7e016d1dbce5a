package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"os"
	"strings"

	"github.com/Majidul17068/carevoice/internal/models"
)

// SMTPOpts holds configuration options for the email notifier.
type SMTPOpts struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPOption defines a configuration option for the email notifier.
type SMTPOption func(*SMTPOpts)

// WithHost sets the SMTP host.
func WithHost(host string) SMTPOption {
	return func(o *SMTPOpts) { o.Host = host }
}

// WithPort sets the SMTP port.
func WithPort(port string) SMTPOption {
	return func(o *SMTPOpts) { o.Port = port }
}

// WithCredentials sets the SMTP auth credentials.
func WithCredentials(username, password string) SMTPOption {
	return func(o *SMTPOpts) {
		o.Username = username
		o.Password = password
	}
}

// WithFrom sets the sender address.
func WithFrom(from string) SMTPOption {
	return func(o *SMTPOpts) { o.From = from }
}

// sendMailFunc matches smtp.SendMail, injectable for tests.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends manager notifications by email.
type SMTPNotifier struct {
	opts     SMTPOpts
	sendMail sendMailFunc
}

// NewSMTPNotifier creates an email notifier. Settings fall back to the
// SMTP_HOST / SMTP_PORT / SMTP_USERNAME / SMTP_PASSWORD / SMTP_FROM
// environment variables when not provided via options.
func NewSMTPNotifier(opts ...SMTPOption) (*SMTPNotifier, error) {
	var cfg SMTPOpts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Host == "" {
		cfg.Host = os.Getenv("SMTP_HOST")
	}
	if cfg.Port == "" {
		cfg.Port = os.Getenv("SMTP_PORT")
	}
	if cfg.Username == "" {
		cfg.Username = os.Getenv("SMTP_USERNAME")
	}
	if cfg.Password == "" {
		cfg.Password = os.Getenv("SMTP_PASSWORD")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("SMTP_FROM")
	}
	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("SMTP host and port must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address must be provided")
	}
	slog.Debug("notify.NewSMTPNotifier: config loaded", "host", cfg.Host, "port", cfg.Port, "auth_set", cfg.Username != "")
	return &SMTPNotifier{opts: cfg, sendMail: smtp.SendMail}, nil
}

// Notify emails the rendered notification to the recipient set in one message.
func (n *SMTPNotifier) Notify(ctx context.Context, recipients []string, fields models.NotificationFields) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no notification recipients configured")
	}

	subject := fmt.Sprintf("Care home %s report: %s", fields.ScenarioType, fields.ResidentName)
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", n.opts.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(RenderBody(fields))

	var auth smtp.Auth
	if n.opts.Username != "" {
		auth = smtp.PlainAuth("", n.opts.Username, n.opts.Password, n.opts.Host)
	}

	addr := n.opts.Host + ":" + n.opts.Port
	if err := n.sendMail(addr, auth, n.opts.From, recipients, []byte(msg.String())); err != nil {
		slog.Error("SMTPNotifier.Notify: send failed", "recipients", len(recipients), "conversationID", fields.ConversationID, "error", err)
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	slog.Debug("SMTPNotifier.Notify: notification sent", "recipients", len(recipients), "conversationID", fields.ConversationID)
	return nil
}
