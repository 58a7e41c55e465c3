package gate

import (
	"github.com/hireloop/ats-api/internal/model"
	apperrors "github.com/hireloop/ats-api/pkg/errors"
)

// Action is one of the gate operations a caller can invoke.
type Action string

const (
	ActionEnter       Action = "enter"
	ActionApprove     Action = "approve"
	ActionDeny        Action = "deny"
	ActionRequestInfo Action = "request_info"
	ActionProvideInfo Action = "provide_info"
	// ActionReopen is administrative, not a normal gate transition. It is
	// the only way out of denied.
	ActionReopen Action = "reopen"
)

// legal is the transition table. Anything absent here is rejected before any
// row is written or any event emitted.
var legal = map[model.GateStatus]map[Action]model.GateStatus{
	model.GateStatusNotEntered: {
		ActionEnter: model.GateStatusPending,
	},
	model.GateStatusPending: {
		ActionApprove:     model.GateStatusApproved,
		ActionDeny:        model.GateStatusDenied,
		ActionRequestInfo: model.GateStatusInfoRequested,
	},
	model.GateStatusInfoRequested: {
		ActionProvideInfo: model.GateStatusInfoProvided,
	},
	// info_provided is "pending again, with an answer attached"; reviewers
	// may also ask again, looping back through info_requested.
	model.GateStatusInfoProvided: {
		ActionApprove:     model.GateStatusApproved,
		ActionDeny:        model.GateStatusDenied,
		ActionRequestInfo: model.GateStatusInfoRequested,
	},
	model.GateStatusDenied: {
		ActionReopen: model.GateStatusPending,
	},
}

// nextStatus resolves the transition table, failing with an error that names
// the current state and the attempted action.
func nextStatus(gate string, current model.GateStatus, action Action) (model.GateStatus, error) {
	if actions, ok := legal[current]; ok {
		if to, ok := actions[action]; ok {
			return to, nil
		}
	}
	return "", apperrors.InvalidTransition(gate, string(current), string(action))
}

// actorAllowed enforces who may perform each action. Policy beyond "a
// reviewer acts within a gate" belongs to the identity layer, not here.
func actorAllowed(action Action, actor model.Actor) bool {
	switch action {
	case ActionEnter:
		return actor == model.ActorRecruiter || actor == model.ActorSystem
	case ActionApprove, ActionDeny, ActionRequestInfo:
		return actor.Reviewer()
	case ActionProvideInfo:
		return actor == model.ActorCandidate
	case ActionReopen:
		return actor == model.ActorRecruiter || actor == model.ActorSystem
	}
	return false
}
