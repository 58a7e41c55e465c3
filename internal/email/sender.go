package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/hireloop/ats-api/pkg/logger"
)

// Sender delivers one rendered message. Implementations are expected to be
// safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
	logger *logger.Logger
}

// NewSMTPSender builds a Sender backed by an SMTP relay.
func NewSMTPSender(cfg SMTPConfig, log *logger.Logger) Sender {
	return &smtpSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
		logger: log,
	}
}

func (s *smtpSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.Debug("email sent", "to", to, "subject", subject)
	return nil
}

// NoopSender discards messages. Used in development environments without an
// SMTP relay configured.
type NoopSender struct {
	Logger *logger.Logger
}

func (s *NoopSender) Send(_ context.Context, to, subject, _ string) error {
	if s.Logger != nil {
		s.Logger.Info("email suppressed (no SMTP configured)", "to", to, "subject", subject)
	}
	return nil
}
