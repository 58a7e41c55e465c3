package model

import (
	"time"

	"github.com/google/uuid"
)

type GateStatus string

const (
	GateStatusNotEntered    GateStatus = "not_entered"
	GateStatusPending       GateStatus = "pending"
	GateStatusInfoRequested GateStatus = "info_requested"
	GateStatusInfoProvided  GateStatus = "info_provided"
	GateStatusApproved      GateStatus = "approved"
	GateStatusDenied        GateStatus = "denied"
)

// Terminal reports whether the status closes the gate.
func (s GateStatus) Terminal() bool {
	return s == GateStatusApproved || s == GateStatusDenied
}

type Actor string

const (
	ActorCandidate       Actor = "candidate"
	ActorRecruiter       Actor = "recruiter"
	ActorCompanyReviewer Actor = "company_reviewer"
	ActorAIReviewer      Actor = "ai_reviewer"
	ActorSystem          Actor = "system"
)

// Reviewer reports whether the actor may approve, deny or request info.
func (a Actor) Reviewer() bool {
	switch a {
	case ActorRecruiter, ActorCompanyReviewer, ActorAIReviewer, ActorSystem:
		return true
	}
	return false
}

// ValidActor reports whether the string names a known actor.
func ValidActor(s string) bool {
	switch Actor(s) {
	case ActorCandidate, ActorRecruiter, ActorCompanyReviewer, ActorAIReviewer, ActorSystem:
		return true
	}
	return false
}

// GateTransition is one row of the append-only gate history. The current
// state of a gate is the ToStatus of its latest transition.
type GateTransition struct {
	ID            int64      `db:"id" json:"id"`
	ApplicationID uuid.UUID  `db:"application_id" json:"application_id"`
	Gate          string     `db:"gate" json:"gate"`
	FromStatus    GateStatus `db:"from_status" json:"from_status"`
	ToStatus      GateStatus `db:"to_status" json:"to_status"`
	Actor         Actor      `db:"actor" json:"actor"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	OccurredAt    time.Time  `db:"occurred_at" json:"occurred_at"`
}

// ApplicationGateState is the queryable projection: the one active gate an
// application occupies and its status. Recomputed from the last transition,
// never mutated directly by handlers.
type ApplicationGateState struct {
	ApplicationID uuid.UUID  `db:"application_id" json:"application_id"`
	CurrentGate   string     `db:"current_gate" json:"current_gate"`
	GateStatus    GateStatus `db:"gate_status" json:"gate_status"`
	EnteredAt     time.Time  `db:"entered_at" json:"entered_at"`
	ResolvedAt    *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}
