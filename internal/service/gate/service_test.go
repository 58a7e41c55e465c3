package gate

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/ats-api/internal/model"
	"github.com/hireloop/ats-api/internal/service/outbox"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
	"github.com/hireloop/ats-api/pkg/event"
	"github.com/hireloop/ats-api/pkg/logger"
	"github.com/hireloop/ats-api/pkg/metrics"
)

// Shared across tests: prometheus collectors register globally once.
var testMetrics = metrics.New("gate_service_test")

type fixture struct {
	svc    *Service
	apps   *fakeApps
	gates  *fakeGates
	outbox *fakeOutboxRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	apps := newFakeApps()
	gates := newFakeGates()
	outboxRepo := &fakeOutboxRepo{}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})

	svc := NewService(apps, gates, outbox.NewWriter(outboxRepo), fakeTxRunner{},
		log, testMetrics, "https://app.hireloop.io")
	return &fixture{svc: svc, apps: apps, gates: gates, outbox: outboxRepo}
}

func (f *fixture) createApplication(t *testing.T, pipeline ...string) *model.Application {
	t.Helper()
	app := &model.Application{
		CandidateID:    uuid.New(),
		CandidateName:  "Dana Velasquez",
		CandidateEmail: "dana@example.com",
		JobID:          uuid.New(),
		JobTitle:       "Staff Engineer",
		CompanyName:    "Initech",
		Pipeline:       pipeline,
	}
	require.NoError(t, f.svc.CreateApplication(context.Background(), app))
	return app
}

func TestCreateApplicationValidatesPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.CreateApplication(ctx, &model.Application{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	err = f.svc.CreateApplication(ctx, &model.Application{Pipeline: []string{"screen", "screen"}})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCreateApplicationEmitsEvent(t *testing.T) {
	f := newFixture(t)
	f.createApplication(t, "screen", "interview")

	require.Equal(t, []string{event.TypeApplicationCreated}, f.outbox.eventTypes())
}

// Scenario: enter screen, reviewer requests info, candidate answers,
// reviewer approves, application auto-enters interview. Four gate events in
// order, all distinct types.
func TestInfoRequestLoopThroughApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen", "interview")

	state, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusPending, state.GateStatus)

	state, err = f.svc.RequestInfo(ctx, app.ID, "screen", model.ActorCompanyReviewer,
		[]string{"confirm salary expectations"})
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusInfoRequested, state.GateStatus)

	state, err = f.svc.ProvideInfo(ctx, app.ID, "screen", model.ActorCandidate,
		[]string{"90k-110k depending on equity"})
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusInfoProvided, state.GateStatus)

	state, err = f.svc.Approve(ctx, app.ID, "screen", model.ActorCompanyReviewer, "solid background")
	require.NoError(t, err)

	// Approval advanced the application into the next gate.
	assert.Equal(t, "interview", state.CurrentGate)
	assert.Equal(t, model.GateStatusPending, state.GateStatus)

	types := f.outbox.eventTypes()
	require.Equal(t, []string{
		event.TypeApplicationCreated,
		event.TypeGateEntered,
		event.TypeGateInfoRequested,
		event.TypeGateInfoProvided,
		event.TypeGateApproved,
	}, types)

	// The advancement rides in the approval payload.
	approved := f.outbox.appended[len(f.outbox.appended)-1]
	decoded, err := event.Decode(&event.Envelope{
		EventType:     approved.EventType,
		SchemaVersion: approved.SchemaVersion,
		Payload:       approved.Payload,
	})
	require.NoError(t, err)
	payload := decoded.(*event.GateApprovedPayload)
	assert.Equal(t, "interview", payload.NextGate)
	assert.False(t, payload.PipelineCompleted)
}

func TestApproveFinalGateCompletesPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen")

	_, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)

	state, err := f.svc.Approve(ctx, app.ID, "screen", model.ActorAIReviewer, "")
	require.NoError(t, err)

	assert.Equal(t, "screen", state.CurrentGate)
	assert.Equal(t, model.GateStatusApproved, state.GateStatus)
	require.NotNil(t, state.ResolvedAt)

	stored, err := f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusHired, stored.Status)

	types := f.outbox.eventTypes()
	require.Equal(t, []string{
		event.TypeApplicationCreated,
		event.TypeGateEntered,
		event.TypeGateApproved,
		event.TypeApplicationHired,
	}, types)

	approved := f.outbox.appended[len(f.outbox.appended)-2]
	decoded, err := event.Decode(&event.Envelope{
		EventType:     approved.EventType,
		SchemaVersion: approved.SchemaVersion,
		Payload:       approved.Payload,
	})
	require.NoError(t, err)
	payload := decoded.(*event.GateApprovedPayload)
	assert.True(t, payload.PipelineCompleted)
	assert.Empty(t, payload.NextGate)

	hired := f.outbox.appended[len(f.outbox.appended)-1]
	decoded, err = event.Decode(&event.Envelope{
		EventType:     hired.EventType,
		SchemaVersion: hired.SchemaVersion,
		Payload:       hired.Payload,
	})
	require.NoError(t, err)
	assert.Equal(t, "screen", decoded.(*event.ApplicationHiredPayload).FinalGate)
}

func TestDenyTerminatesPipeline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen", "interview")

	_, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)

	state, err := f.svc.Deny(ctx, app.ID, "screen", model.ActorCompanyReviewer,
		"missing required certification", "re-apply once certified")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusDenied, state.GateStatus)
	require.NotNil(t, state.ResolvedAt)

	stored, err := f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusRejected, stored.Status)

	types := f.outbox.eventTypes()
	assert.Equal(t, event.TypeGateDenied, types[len(types)-2])
	assert.Equal(t, event.TypeApplicationRejected, types[len(types)-1])
}

func TestDenyRequiresReason(t *testing.T) {
	f := newFixture(t)
	app := f.createApplication(t, "screen")

	_, err := f.svc.Deny(context.Background(), app.ID, "screen", model.ActorRecruiter, "", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestIllegalTransitionsRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen", "interview")

	// Deny before the gate was entered.
	_, err := f.svc.Deny(ctx, app.ID, "screen", model.ActorRecruiter, "nope", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	_, err = f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, app.ID, "screen", model.ActorRecruiter, "")
	require.NoError(t, err)

	eventsBefore := len(f.outbox.appended)

	// Approve again: the screen gate is resolved.
	_, err = f.svc.Approve(ctx, app.ID, "screen", model.ActorRecruiter, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	// Entering the auto-advanced gate again is also illegal.
	_, err = f.svc.EnterGate(ctx, app.ID, "interview", model.ActorRecruiter)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	// The auto-advanced interview gate is live and can be acted on normally.
	// A deny contributes gate.denied plus the terminal application.rejected.
	_, err = f.svc.Deny(ctx, app.ID, "interview", model.ActorRecruiter, "too soon", "")
	require.NoError(t, err)

	assert.Len(t, f.outbox.appended, eventsBefore+2, "rejected transitions must not emit events")
}

func TestEnterSkippingAheadRejected(t *testing.T) {
	f := newFixture(t)
	app := f.createApplication(t, "screen", "interview")

	_, err := f.svc.EnterGate(context.Background(), app.ID, "interview", model.ActorRecruiter)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestGateOutsidePipelineRejected(t *testing.T) {
	f := newFixture(t)
	app := f.createApplication(t, "screen")

	_, err := f.svc.EnterGate(context.Background(), app.ID, "background_check", model.ActorRecruiter)
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestActorPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen")

	_, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorCandidate)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)

	// Candidates answer info requests; they do not approve.
	_, err = f.svc.Approve(ctx, app.ID, "screen", model.ActorCandidate, "")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	_, err = f.svc.RequestInfo(ctx, app.ID, "screen", model.ActorRecruiter, []string{"why"})
	require.NoError(t, err)

	_, err = f.svc.ProvideInfo(ctx, app.ID, "screen", model.ActorRecruiter, []string{"because"})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))
}

// Scenario: two reviewers race approve vs deny on the same pending gate.
// The loser's transaction fails to take the row lock and surfaces
// ErrConcurrentModification; exactly one event is emitted.
func TestConcurrentReviewersOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen")

	_, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, app.ID, "screen", model.ActorCompanyReviewer, "")
	require.NoError(t, err)

	// The second reviewer hits the row lock the winner still holds.
	f.apps.lockErr = apperrors.ConcurrentModification(app.ID.String(), nil)
	_, err = f.svc.Deny(ctx, app.ID, "screen", model.ActorRecruiter, "no", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrConcurrentModification))

	// Only the winner's approval (and its terminal event) made it out.
	assert.Equal(t, []string{
		event.TypeApplicationCreated,
		event.TypeGateEntered,
		event.TypeGateApproved,
		event.TypeApplicationHired,
	}, f.outbox.eventTypes())
}

func TestReopenDeniedGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen", "interview")

	_, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)
	_, err = f.svc.Deny(ctx, app.ID, "screen", model.ActorRecruiter, "thin resume", "")
	require.NoError(t, err)

	// Candidates cannot reopen.
	_, err = f.svc.Reopen(ctx, app.ID, "screen", model.ActorCandidate, "appeal")
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	state, err := f.svc.Reopen(ctx, app.ID, "screen", model.ActorRecruiter, "additional references provided")
	require.NoError(t, err)
	assert.Equal(t, model.GateStatusPending, state.GateStatus)

	stored, err := f.svc.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationStatusActive, stored.Status)

	types := f.outbox.eventTypes()
	assert.Equal(t, event.TypeGateReopened, types[len(types)-1])
}

func TestTransitionLogIsAppendOnlyHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen", "interview")

	_, err := f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, app.ID, "screen", model.ActorRecruiter, "")
	require.NoError(t, err)

	transitions, err := f.svc.ListTransitions(ctx, app.ID)
	require.NoError(t, err)
	// enter, approve, and the system-entered next gate.
	require.Len(t, transitions, 3)
	assert.Equal(t, model.GateStatusPending, transitions[0].ToStatus)
	assert.Equal(t, model.GateStatusApproved, transitions[1].ToStatus)
	assert.Equal(t, "interview", transitions[2].Gate)
	assert.Equal(t, model.ActorSystem, transitions[2].Actor)
}

func TestGetStateUsesProjection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	app := f.createApplication(t, "screen")

	_, err := f.svc.GetState(ctx, app.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	_, err = f.svc.EnterGate(ctx, app.ID, "screen", model.ActorRecruiter)
	require.NoError(t, err)

	state, err := f.svc.GetState(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "screen", state.CurrentGate)
	assert.Equal(t, model.GateStatusPending, state.GateStatus)
}
