package worker

import (
	"context"
	"time"

	"github.com/hireloop/ats-api/internal/email"
	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	"github.com/hireloop/ats-api/pkg/backoff"
	"github.com/hireloop/ats-api/pkg/logger"
)

type MailerConfig struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	// Retry spaces send attempts across cycles via next_attempt_at.
	Retry backoff.Policy
}

// Mailer drains pending email notifications. Rows are committed by the
// consumer's dedup transaction, so a crash between send and MarkSent can
// resend one email; in-app rows stay exactly-once.
type Mailer struct {
	notifications repository.NotificationRepository
	sender        email.Sender
	config        MailerConfig
	logger        *logger.Logger
}

func NewMailer(
	notifications repository.NotificationRepository,
	sender email.Sender,
	config MailerConfig,
	log *logger.Logger,
) *Mailer {
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 5
	}
	if config.Retry.Initial <= 0 {
		config.Retry = backoff.Policy{
			Initial:    30 * time.Second,
			Max:        10 * time.Minute,
			Multiplier: 2,
		}
	}
	return &Mailer{
		notifications: notifications,
		sender:        sender,
		config:        config,
		logger:        log,
	}
}

func (m *Mailer) Start(ctx context.Context) {
	m.logger.Info("starting notification mailer")
	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("shutting down notification mailer")
			return
		case <-ticker.C:
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error(err, "mailer cycle failed")
			}
		}
	}
}

func (m *Mailer) RunOnce(ctx context.Context) error {
	pending, err := m.notifications.ListPending(ctx, model.NotificationChannelEmail, m.config.BatchSize)
	if err != nil {
		return err
	}

	for _, n := range pending {
		if err := m.sender.Send(ctx, n.Recipient, n.Subject, n.Body); err != nil {
			attempts := n.AttemptCount + 1
			if attempts >= m.config.MaxAttempts {
				if markErr := m.notifications.MarkExhausted(ctx, n.ID, err.Error()); markErr != nil {
					return markErr
				}
				m.logger.Error(err, "email delivery exhausted",
					"notification_id", n.ID.String(),
					"recipient", n.Recipient,
					"attempts", attempts)
				continue
			}

			nextAttempt := time.Now().Add(m.config.Retry.DelayFor(n.AttemptCount))
			if markErr := m.notifications.MarkFailed(ctx, n.ID, err.Error(), nextAttempt); markErr != nil {
				return markErr
			}
			m.logger.Warn("email delivery failed, scheduled retry",
				"notification_id", n.ID.String(),
				"recipient", n.Recipient,
				"attempt", attempts,
				"next_attempt_at", nextAttempt)
			continue
		}
		if err := m.notifications.MarkSent(ctx, n.ID); err != nil {
			return err
		}
	}
	return nil
}
