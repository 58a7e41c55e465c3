package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/ats-api/pkg/event"
)

func gateCtx() event.GateContext {
	return event.GateContext{
		ApplicationID: "4f6e9ad0-0000-0000-0000-000000000001",
		Gate:          "screening",
		Actor:         "reviewer@acme.test",
		CandidateName: "Dana Reyes",
		JobTitle:      "Platform Engineer",
		CompanyName:   "Acme",
		ActionURL:     "https://app.hireloop.test/applications/1",
	}
}

func TestRenderGateEventCoversEveryGateType(t *testing.T) {
	payloads := []interface{}{
		&event.GateEnteredPayload{GateContext: gateCtx()},
		&event.GateApprovedPayload{GateContext: gateCtx(), NextGate: "interview"},
		&event.GateDeniedPayload{GateContext: gateCtx(), Reason: "experience", Feedback: "thin backend depth"},
		&event.GateInfoRequestedPayload{GateContext: gateCtx(), Questions: []string{"Visa status?", "Notice period?"}},
		&event.GateInfoProvidedPayload{GateContext: gateCtx(), Answers: []string{"Citizen", "Two weeks"}},
		&event.GateReopenedPayload{GateContext: gateCtx(), Reason: "appeal accepted"},
	}

	for _, payload := range payloads {
		rendered, err := RenderGateEvent(payload)
		require.NoError(t, err, "%T", payload)
		assert.NotEmpty(t, rendered.Subject, "%T", payload)
		assert.NotEmpty(t, rendered.Body, "%T", payload)
	}
}

func TestRenderApprovedFinalGate(t *testing.T) {
	rendered, err := RenderGateEvent(&event.GateApprovedPayload{
		GateContext:       gateCtx(),
		PipelineCompleted: true,
	})
	require.NoError(t, err)
	assert.Contains(t, rendered.Subject, "Congratulations")
	assert.Contains(t, rendered.Body, "completed every stage")
}

func TestRenderInfoRequestedListsQuestions(t *testing.T) {
	rendered, err := RenderGateEvent(&event.GateInfoRequestedPayload{
		GateContext: gateCtx(),
		Questions:   []string{"Earliest start date?"},
	})
	require.NoError(t, err)
	assert.Contains(t, rendered.Body, "Earliest start date?")
}

func TestRenderUnknownPayloadFails(t *testing.T) {
	_, err := RenderGateEvent(&event.ApplicationCreatedPayload{})
	assert.Error(t, err)
}
