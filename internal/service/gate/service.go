// Package gate implements the review state machine an application moves
// through: an ordered pipeline of gates, each entered, approved, denied or
// bounced back for more information. Every committed transition appends to
// the transition log, refreshes the projection and writes an outbox event in
// the same transaction.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	gocache "github.com/patrickmn/go-cache"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/repository"
	"github.com/hireloop/ats-api/internal/service/outbox"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
	"github.com/hireloop/ats-api/pkg/event"
	"github.com/hireloop/ats-api/pkg/logger"
	"github.com/hireloop/ats-api/pkg/metrics"
)

const (
	stateCacheTTL     = 30 * time.Second
	stateCacheCleanup = 5 * time.Minute
)

type Service struct {
	apps       repository.ApplicationRepository
	gates      repository.GateRepository
	outbox     *outbox.Writer
	tx         repository.TxRunner
	stateCache *gocache.Cache
	logger     *logger.Logger
	metrics    *metrics.Metrics
	webBaseURL string
}

func NewService(
	apps repository.ApplicationRepository,
	gates repository.GateRepository,
	outboxWriter *outbox.Writer,
	tx repository.TxRunner,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	webBaseURL string,
) *Service {
	return &Service{
		apps:       apps,
		gates:      gates,
		outbox:     outboxWriter,
		tx:         tx,
		stateCache: gocache.New(stateCacheTTL, stateCacheCleanup),
		logger:     logger,
		metrics:    metrics,
		webBaseURL: webBaseURL,
	}
}

// CreateApplication registers the aggregate gates attach to. The pipeline is
// fixed here and never changes afterwards.
func (s *Service) CreateApplication(ctx context.Context, app *model.Application) error {
	if len(app.Pipeline) == 0 {
		return apperrors.NewBadRequest("pipeline must name at least one gate", nil)
	}
	seen := make(map[string]bool, len(app.Pipeline))
	for _, g := range app.Pipeline {
		if g == "" {
			return apperrors.NewBadRequest("pipeline gates must be named", nil)
		}
		if seen[g] {
			return apperrors.NewBadRequest(fmt.Sprintf("duplicate gate %q in pipeline", g), nil)
		}
		seen[g] = true
	}

	app.ID = uuid.New()
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.apps.Create(ctx, tx, app); err != nil {
			return err
		}
		_, err := s.outbox.Append(ctx, tx, event.AggregateApplication, app.ID,
			event.TypeApplicationCreated, &event.ApplicationCreatedPayload{
				ApplicationID: app.ID.String(),
				CandidateName: app.CandidateName,
				JobTitle:      app.JobTitle,
				CompanyName:   app.CompanyName,
				Pipeline:      app.Pipeline,
			})
		return err
	})
}

func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	return s.apps.Get(ctx, id)
}

// GetState returns the projection, cached briefly for the dashboard-style
// read traffic.
func (s *Service) GetState(ctx context.Context, applicationID uuid.UUID) (*model.ApplicationGateState, error) {
	key := applicationID.String()
	if cached, ok := s.stateCache.Get(key); ok {
		return cached.(*model.ApplicationGateState), nil
	}
	state, err := s.gates.GetState(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apperrors.NewNotFound("gate state", nil)
	}
	s.stateCache.Set(key, state, gocache.DefaultExpiration)
	return state, nil
}

func (s *Service) ListTransitions(ctx context.Context, applicationID uuid.UUID) ([]*model.GateTransition, error) {
	return s.gates.ListTransitions(ctx, applicationID)
}

// EnterGate moves an application into its first gate. Later gates are
// entered automatically when the prior gate is approved.
func (s *Service) EnterGate(ctx context.Context, applicationID uuid.UUID, gateName string, actor model.Actor) (*model.ApplicationGateState, error) {
	return s.mutate(ctx, applicationID, gateName, ActionEnter, actor,
		func(tx *sqlx.Tx, app *model.Application, m *mutation) error {
			m.payload = &event.GateEnteredPayload{GateContext: s.gateContext(app, gateName, m.actor)}
			m.eventType = event.TypeGateEntered
			return nil
		})
}

// Approve resolves the gate and advances the application: into the next
// gate, or to overall success when this was the last one. The advancement
// rides in the gate.approved payload rather than a separate event.
func (s *Service) Approve(ctx context.Context, applicationID uuid.UUID, gateName string, actor model.Actor, notes string) (*model.ApplicationGateState, error) {
	return s.mutate(ctx, applicationID, gateName, ActionApprove, actor,
		func(tx *sqlx.Tx, app *model.Application, m *mutation) error {
			payload := &event.GateApprovedPayload{
				GateContext: s.gateContext(app, gateName, m.actor),
				Notes:       notes,
			}
			if notes != "" {
				m.notes = &notes
			}

			next := app.NextGate(gateName)
			if next == "" {
				payload.PipelineCompleted = true
				if err := s.apps.UpdateStatus(ctx, tx, app.ID, model.ApplicationStatusHired); err != nil {
					return err
				}
				m.followupType = event.TypeApplicationHired
				m.followupPayload = &event.ApplicationHiredPayload{
					ApplicationID: app.ID.String(),
					CandidateName: app.CandidateName,
					JobTitle:      app.JobTitle,
					CompanyName:   app.CompanyName,
					FinalGate:     gateName,
				}
			} else {
				payload.NextGate = next
				m.chainInto = next
			}

			m.payload = payload
			m.eventType = event.TypeGateApproved
			return nil
		})
}

// Deny resolves the gate against the candidate and terminates the pipeline.
func (s *Service) Deny(ctx context.Context, applicationID uuid.UUID, gateName string, actor model.Actor, reason, feedback string) (*model.ApplicationGateState, error) {
	if reason == "" {
		return nil, apperrors.NewBadRequest("a denial requires a reason", nil)
	}
	return s.mutate(ctx, applicationID, gateName, ActionDeny, actor,
		func(tx *sqlx.Tx, app *model.Application, m *mutation) error {
			m.notes = &reason
			m.payload = &event.GateDeniedPayload{
				GateContext: s.gateContext(app, gateName, m.actor),
				Reason:      reason,
				Feedback:    feedback,
			}
			m.eventType = event.TypeGateDenied
			m.followupType = event.TypeApplicationRejected
			m.followupPayload = &event.ApplicationRejectedPayload{
				ApplicationID: app.ID.String(),
				Gate:          gateName,
				Reason:        reason,
			}
			return s.apps.UpdateStatus(ctx, tx, app.ID, model.ApplicationStatusRejected)
		})
}

// RequestInfo bounces the gate back to the candidate with questions.
func (s *Service) RequestInfo(ctx context.Context, applicationID uuid.UUID, gateName string, actor model.Actor, questions []string) (*model.ApplicationGateState, error) {
	if len(questions) == 0 {
		return nil, apperrors.NewBadRequest("an information request needs at least one question", nil)
	}
	return s.mutate(ctx, applicationID, gateName, ActionRequestInfo, actor,
		func(tx *sqlx.Tx, app *model.Application, m *mutation) error {
			joined := strings.Join(questions, "; ")
			m.notes = &joined
			m.payload = &event.GateInfoRequestedPayload{
				GateContext: s.gateContext(app, gateName, m.actor),
				Questions:   questions,
			}
			m.eventType = event.TypeGateInfoRequested
			return nil
		})
}

// ProvideInfo answers an information request, putting the gate back in front
// of the reviewers.
func (s *Service) ProvideInfo(ctx context.Context, applicationID uuid.UUID, gateName string, actor model.Actor, answers []string) (*model.ApplicationGateState, error) {
	if len(answers) == 0 {
		return nil, apperrors.NewBadRequest("providing information requires at least one answer", nil)
	}
	return s.mutate(ctx, applicationID, gateName, ActionProvideInfo, actor,
		func(tx *sqlx.Tx, app *model.Application, m *mutation) error {
			joined := strings.Join(answers, "; ")
			m.notes = &joined
			m.payload = &event.GateInfoProvidedPayload{
				GateContext: s.gateContext(app, gateName, m.actor),
				Answers:     answers,
			}
			m.eventType = event.TypeGateInfoProvided
			return nil
		})
}

// Reopen is the audited administrative escape hatch out of denied. It is not
// part of the normal review flow.
func (s *Service) Reopen(ctx context.Context, applicationID uuid.UUID, gateName string, actor model.Actor, reason string) (*model.ApplicationGateState, error) {
	if reason == "" {
		return nil, apperrors.NewBadRequest("reopening requires a reason", nil)
	}
	return s.mutate(ctx, applicationID, gateName, ActionReopen, actor,
		func(tx *sqlx.Tx, app *model.Application, m *mutation) error {
			m.notes = &reason
			m.payload = &event.GateReopenedPayload{
				GateContext: s.gateContext(app, gateName, m.actor),
				Reason:      reason,
			}
			m.eventType = event.TypeGateReopened
			return s.apps.UpdateStatus(ctx, tx, app.ID, model.ApplicationStatusActive)
		})
}

// mutation collects what a specific action contributes to the shared
// transition flow.
type mutation struct {
	actor     model.Actor
	notes     *string
	payload   interface{}
	eventType string
	// chainInto names the gate to auto-enter after this transition commits
	// (approval mid-pipeline).
	chainInto string
	// followupType/followupPayload emit a second event after the gate event,
	// still in the same transaction (pipeline terminal outcomes).
	followupType    string
	followupPayload interface{}
}

// mutate is the one path every gate action takes: lock the application row,
// check the transition table, append to the log, refresh the projection and
// write the outbox event, all in one transaction.
func (s *Service) mutate(
	ctx context.Context,
	applicationID uuid.UUID,
	gateName string,
	action Action,
	actor model.Actor,
	apply func(tx *sqlx.Tx, app *model.Application, m *mutation) error,
) (*model.ApplicationGateState, error) {
	if !model.ValidActor(string(actor)) {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown actor %q", actor), nil)
	}
	if !actorAllowed(action, actor) {
		return nil, apperrors.Forbidden(fmt.Sprintf("actor %s may not %s", actor, action))
	}

	var result *model.ApplicationGateState
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		app, err := s.apps.GetForUpdate(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if app.GateIndex(gateName) < 0 {
			return apperrors.NewBadRequest(fmt.Sprintf("gate %q is not part of this application's pipeline", gateName), nil)
		}

		state, err := s.gates.GetState(ctx, app.ID)
		if err != nil {
			return err
		}
		current, err := s.currentStatus(app, state, gateName)
		if err != nil {
			return err
		}
		to, err := nextStatus(gateName, current, action)
		if err != nil {
			return err
		}

		m := &mutation{actor: actor}
		if err := apply(tx, app, m); err != nil {
			return err
		}

		now := time.Now()
		if err := s.gates.InsertTransition(ctx, tx, &model.GateTransition{
			ApplicationID: app.ID,
			Gate:          gateName,
			FromStatus:    current,
			ToStatus:      to,
			Actor:         actor,
			Notes:         m.notes,
			OccurredAt:    now,
		}); err != nil {
			return err
		}

		result = s.projectionAfter(state, gateName, to, now)
		result.ApplicationID = app.ID
		if m.chainInto != "" {
			if err := s.gates.InsertTransition(ctx, tx, &model.GateTransition{
				ApplicationID: app.ID,
				Gate:          m.chainInto,
				FromStatus:    model.GateStatusNotEntered,
				ToStatus:      model.GateStatusPending,
				Actor:         model.ActorSystem,
				OccurredAt:    now,
			}); err != nil {
				return err
			}
			result = &model.ApplicationGateState{
				ApplicationID: app.ID,
				CurrentGate:   m.chainInto,
				GateStatus:    model.GateStatusPending,
				EnteredAt:     now,
			}
		}
		if err := s.gates.UpsertState(ctx, tx, result); err != nil {
			return err
		}

		if _, err := s.outbox.Append(ctx, tx, event.AggregateApplication, app.ID, m.eventType, m.payload); err != nil {
			return err
		}
		if m.followupType != "" {
			if _, err := s.outbox.Append(ctx, tx, event.AggregateApplication, app.ID, m.followupType, m.followupPayload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.observeRejection(err)
		return nil, err
	}

	s.stateCache.Delete(applicationID.String())
	s.metrics.GateTransitions.WithLabelValues(result.CurrentGate, string(result.GateStatus)).Inc()
	s.logger.Info("gate transition committed",
		"application_id", applicationID.String(),
		"gate", gateName,
		"action", string(action),
		"actor", string(actor))
	return result, nil
}

// currentStatus derives the status of gateName from the projection, checking
// the pipeline-order preconditions along the way.
func (s *Service) currentStatus(app *model.Application, state *model.ApplicationGateState, gateName string) (model.GateStatus, error) {
	if state == nil {
		if app.GateIndex(gateName) != 0 {
			return "", apperrors.InvalidTransition(gateName, string(model.GateStatusNotEntered),
				"acting before prior gates are approved")
		}
		return model.GateStatusNotEntered, nil
	}
	if state.CurrentGate == gateName {
		return state.GateStatus, nil
	}

	gateIdx := app.GateIndex(gateName)
	currentIdx := app.GateIndex(state.CurrentGate)
	if gateIdx < currentIdx {
		// An earlier gate: its terminal outcome is in the log, and it is
		// closed for further action.
		return "", apperrors.InvalidTransition(gateName, string(model.GateStatusApproved),
			fmt.Sprintf("acting on a resolved gate while %q is active", state.CurrentGate))
	}
	return "", apperrors.InvalidTransition(gateName, string(model.GateStatusNotEntered),
		fmt.Sprintf("acting ahead of the active gate %q", state.CurrentGate))
}

func (s *Service) projectionAfter(prev *model.ApplicationGateState, gateName string, to model.GateStatus, now time.Time) *model.ApplicationGateState {
	next := &model.ApplicationGateState{
		CurrentGate: gateName,
		GateStatus:  to,
		EnteredAt:   now,
	}
	if prev != nil {
		next.ApplicationID = prev.ApplicationID
		if prev.CurrentGate == gateName {
			next.EnteredAt = prev.EnteredAt
		}
	}
	if to.Terminal() {
		resolved := now
		next.ResolvedAt = &resolved
	}
	return next
}

func (s *Service) gateContext(app *model.Application, gateName string, actor model.Actor) event.GateContext {
	return event.GateContext{
		ApplicationID: app.ID.String(),
		Gate:          gateName,
		Actor:         string(actor),
		CandidateName: app.CandidateName,
		JobTitle:      app.JobTitle,
		CompanyName:   app.CompanyName,
		ActionURL:     fmt.Sprintf("%s/applications/%s", s.webBaseURL, app.ID),
	}
}

func (s *Service) observeRejection(err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidTransition):
		s.metrics.GateTransitionRejected.WithLabelValues("invalid_transition").Inc()
	case apperrors.Is(err, apperrors.ErrConcurrentModification):
		s.metrics.GateTransitionRejected.WithLabelValues("concurrent_modification").Inc()
	}
}
