package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ApplicationStatus string

const (
	ApplicationStatusActive   ApplicationStatus = "active"
	ApplicationStatusHired    ApplicationStatus = "hired"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// Application is the aggregate gate events are about. Pipeline is the
// ordered list of gates fixed at creation time.
type Application struct {
	ID             uuid.UUID         `db:"id" json:"id"`
	CandidateID    uuid.UUID         `db:"candidate_id" json:"candidate_id"`
	CandidateName  string            `db:"candidate_name" json:"candidate_name"`
	CandidateEmail string            `db:"candidate_email" json:"candidate_email"`
	JobID          uuid.UUID         `db:"job_id" json:"job_id"`
	JobTitle       string            `db:"job_title" json:"job_title"`
	CompanyName    string            `db:"company_name" json:"company_name"`
	Pipeline       pq.StringArray    `db:"pipeline" json:"pipeline"`
	Status         ApplicationStatus `db:"status" json:"status"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// GateIndex returns the position of a gate in the pipeline, or -1.
func (a *Application) GateIndex(gate string) int {
	for i, g := range a.Pipeline {
		if g == gate {
			return i
		}
	}
	return -1
}

// NextGate returns the gate after the given one, or "" if it is the last.
func (a *Application) NextGate(gate string) string {
	idx := a.GateIndex(gate)
	if idx < 0 || idx+1 >= len(a.Pipeline) {
		return ""
	}
	return a.Pipeline[idx+1]
}
