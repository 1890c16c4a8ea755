package deliver

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

type Sender interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// LogSender logs emails instead of sending them — used in ENV=local.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to []string, subject, htmlBody string) error {
	s.logger.Info("digest email (local dev)", "to", to, "subject", subject, "body_len", len(htmlBody))
	return nil
}

// smtpProvider is the host/port table for the SMTP providers this sender
// supports. Dialing happens per-send — gomail does not pool connections
// across calls, and a tick only ever sends at most a handful of emails.
type smtpProvider struct {
	host string
	port int
}

var smtpProviders = map[string]smtpProvider{
	"gmail": {host: "smtp.gmail.com", port: 587},
	"zoho":  {host: "smtp.zoho.com", port: 587},
}

type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender for provider ("gmail" or "zoho"),
// authenticating with username/password. Returns an error for an
// unrecognised provider rather than silently defaulting somewhere.
func NewSMTPSender(provider, username, password, from string) (*SMTPSender, error) {
	cfg, ok := smtpProviders[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported smtp provider %q", provider)
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.host, cfg.port, username, password),
		from:   from,
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewSender returns a LogSender for ENV=local, an SMTPSender otherwise.
func NewSender(env, provider, username, password, from string, logger *slog.Logger) (Sender, error) {
	if env == "local" {
		return NewLogSender(logger), nil
	}
	return NewSMTPSender(provider, username, password, from)
}
