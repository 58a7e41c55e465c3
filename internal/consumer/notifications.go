package consumer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hireloop/ats-api/internal/email"
	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	"github.com/hireloop/ats-api/pkg/event"
	"github.com/hireloop/ats-api/pkg/logger"
)

// NotificationHandler turns gate events into notification rows. Both the
// in-app row and the email row are written in the dispatcher's dedup
// transaction; the mailer worker picks the email row up after commit.
type NotificationHandler struct {
	apps          repository.ApplicationRepository
	notifications repository.NotificationRepository
	// reviewerInbox receives reviewer-facing notifications; there is no
	// per-reviewer directory, review queues are shared.
	reviewerInbox string
	logger        *logger.Logger
}

func NewNotificationHandler(
	apps repository.ApplicationRepository,
	notifications repository.NotificationRepository,
	reviewerInbox string,
	log *logger.Logger,
) *NotificationHandler {
	return &NotificationHandler{
		apps:          apps,
		notifications: notifications,
		reviewerInbox: reviewerInbox,
		logger:        log,
	}
}

// RegisterAll binds every gate event type this handler renders.
func (h *NotificationHandler) RegisterAll(d *Dispatcher) {
	for _, eventType := range []string{
		event.TypeGateEntered,
		event.TypeGateApproved,
		event.TypeGateDenied,
		event.TypeGateInfoRequested,
		event.TypeGateInfoProvided,
		event.TypeGateReopened,
	} {
		d.Register(eventType, h.Handle)
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, tx *sqlx.Tx, env *event.Envelope, payload interface{}) error {
	rendered, err := email.RenderGateEvent(payload)
	if err != nil {
		return fmt.Errorf("failed to render notification for %s: %w", env.EventType, err)
	}

	recipient, err := h.recipient(ctx, env.EventType, payload)
	if err != nil {
		return err
	}

	for _, channel := range []string{model.NotificationChannelInApp, model.NotificationChannelEmail} {
		n := &model.Notification{
			ID:        uuid.New(),
			EventID:   env.ID,
			Channel:   channel,
			Recipient: recipient,
			Subject:   rendered.Subject,
			Body:      rendered.Body,
			Status:    model.NotificationStatusPending,
		}
		if err := h.notifications.Create(ctx, tx, n); err != nil {
			return err
		}
	}

	h.logger.Debug("notification recorded",
		"event_id", env.ID.String(),
		"event_type", env.EventType,
		"recipient", recipient)
	return nil
}

// recipient routes candidate-facing events to the candidate's address and
// reviewer-facing ones to the shared review inbox.
func (h *NotificationHandler) recipient(ctx context.Context, eventType string, payload interface{}) (string, error) {
	switch eventType {
	case event.TypeGateEntered, event.TypeGateInfoProvided:
		return h.reviewerInbox, nil
	}

	gc, ok := gateContextOf(payload)
	if !ok {
		return "", fmt.Errorf("payload for %s carries no gate context", eventType)
	}
	appID, err := uuid.Parse(gc.ApplicationID)
	if err != nil {
		return "", fmt.Errorf("bad application id %q in %s payload: %w", gc.ApplicationID, eventType, err)
	}
	app, err := h.apps.Get(ctx, appID)
	if err != nil {
		return "", err
	}
	return app.CandidateEmail, nil
}

func gateContextOf(payload interface{}) (event.GateContext, bool) {
	switch p := payload.(type) {
	case *event.GateEnteredPayload:
		return p.GateContext, true
	case *event.GateApprovedPayload:
		return p.GateContext, true
	case *event.GateDeniedPayload:
		return p.GateContext, true
	case *event.GateInfoRequestedPayload:
		return p.GateContext, true
	case *event.GateInfoProvidedPayload:
		return p.GateContext, true
	case *event.GateReopenedPayload:
		return p.GateContext, true
	default:
		return event.GateContext{}, false
	}
}
