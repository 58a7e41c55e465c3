package event

import (
	"encoding/json"
	"fmt"
)

// Event types emitted or consumed by the pipeline.
const (
	TypeGateEntered       = "gate.entered"
	TypeGateApproved      = "gate.approved"
	TypeGateDenied        = "gate.denied"
	TypeGateInfoRequested = "gate.info_requested"
	TypeGateInfoProvided  = "gate.info_provided"
	TypeGateReopened      = "gate.reopened"

	TypeApplicationCreated  = "application.created"
	TypeApplicationHired    = "application.hired"
	TypeApplicationRejected = "application.rejected"

	// Emitted by the placement domain; consumed here for notifications only.
	TypePlacementStatusChanged = "placement.status_changed"
)

// Aggregate types.
const (
	AggregateApplication = "application"
	AggregatePlacement   = "placement"
)

// GateContext identifies the application and gate an event is about, plus
// the display fields the notification templates need.
type GateContext struct {
	ApplicationID string `json:"application_id"`
	Gate          string `json:"gate"`
	Actor         string `json:"actor"`
	CandidateName string `json:"candidate_name"`
	JobTitle      string `json:"job_title"`
	CompanyName   string `json:"company_name"`
	ActionURL     string `json:"action_url,omitempty"`
}

type GateEnteredPayload struct {
	GateContext
}

type GateApprovedPayload struct {
	GateContext
	Notes string `json:"notes,omitempty"`
	// NextGate is set when approval advanced the application; empty plus
	// PipelineCompleted=true means the last gate was approved.
	NextGate          string `json:"next_gate,omitempty"`
	PipelineCompleted bool   `json:"pipeline_completed"`
}

type GateDeniedPayload struct {
	GateContext
	Reason   string `json:"reason"`
	Feedback string `json:"feedback,omitempty"`
}

type GateInfoRequestedPayload struct {
	GateContext
	Questions []string `json:"questions"`
}

type GateInfoProvidedPayload struct {
	GateContext
	Answers []string `json:"answers"`
}

type GateReopenedPayload struct {
	GateContext
	Reason string `json:"reason"`
}

type ApplicationCreatedPayload struct {
	ApplicationID string   `json:"application_id"`
	CandidateName string   `json:"candidate_name"`
	JobTitle      string   `json:"job_title"`
	CompanyName   string   `json:"company_name"`
	Pipeline      []string `json:"pipeline"`
}

// ApplicationHiredPayload marks the whole pipeline approved. Downstream
// services (billing, placement) key off this rather than gate.approved.
type ApplicationHiredPayload struct {
	ApplicationID string `json:"application_id"`
	CandidateName string `json:"candidate_name"`
	JobTitle      string `json:"job_title"`
	CompanyName   string `json:"company_name"`
	FinalGate     string `json:"final_gate"`
}

type ApplicationRejectedPayload struct {
	ApplicationID string `json:"application_id"`
	Gate          string `json:"gate"`
	Reason        string `json:"reason"`
}

type PlacementStatusChangedPayload struct {
	PlacementID   string `json:"placement_id"`
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
}

type schemaEntry struct {
	version int
	factory func() interface{}
}

// registry is the closed union of known payload shapes. Decoding anything
// not registered here fails with ErrUnknownType so consumers can ack and
// move on instead of blocking the queue.
var registry = map[string]schemaEntry{
	TypeGateEntered:            {1, func() interface{} { return &GateEnteredPayload{} }},
	TypeGateApproved:           {1, func() interface{} { return &GateApprovedPayload{} }},
	TypeGateDenied:             {1, func() interface{} { return &GateDeniedPayload{} }},
	TypeGateInfoRequested:      {1, func() interface{} { return &GateInfoRequestedPayload{} }},
	TypeGateInfoProvided:       {1, func() interface{} { return &GateInfoProvidedPayload{} }},
	TypeGateReopened:           {1, func() interface{} { return &GateReopenedPayload{} }},
	TypeApplicationCreated:     {1, func() interface{} { return &ApplicationCreatedPayload{} }},
	TypeApplicationHired:       {1, func() interface{} { return &ApplicationHiredPayload{} }},
	TypeApplicationRejected:    {1, func() interface{} { return &ApplicationRejectedPayload{} }},
	TypePlacementStatusChanged: {1, func() interface{} { return &PlacementStatusChangedPayload{} }},
}

// ErrUnknownType marks an event type outside the registry.
type ErrUnknownType struct {
	EventType string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown event type %q", e.EventType)
}

// SchemaVersion returns the current schema version for an event type.
func SchemaVersion(eventType string) (int, error) {
	entry, ok := registry[eventType]
	if !ok {
		return 0, &ErrUnknownType{EventType: eventType}
	}
	return entry.version, nil
}

// Known reports whether the event type is part of the registry.
func Known(eventType string) bool {
	_, ok := registry[eventType]
	return ok
}

// Decode unmarshals an envelope payload into its registered shape. Schema
// versions newer than the registered one are rejected; older ones decode
// into the current shape with zero values for missing fields.
func Decode(env *Envelope) (interface{}, error) {
	entry, ok := registry[env.EventType]
	if !ok {
		return nil, &ErrUnknownType{EventType: env.EventType}
	}
	if env.SchemaVersion > entry.version {
		return nil, fmt.Errorf("event %s schema version %d is newer than supported %d",
			env.EventType, env.SchemaVersion, entry.version)
	}
	payload := entry.factory()
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", env.EventType, err)
	}
	return payload, nil
}
