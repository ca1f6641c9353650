// Package workflow is the assessment state machine: submission, assessor
// review with at most one rework round, and validator sign-off with at most
// one calibration round.
package workflow

import (
	"errors"
	"fmt"

	"github.com/generyand/sinag-sub010/internal/ctxkeys"
)

type Status string

const (
	StatusDraft              Status = "DRAFT"
	StatusSubmitted          Status = "SUBMITTED"
	StatusInReview           Status = "IN_REVIEW"
	StatusRework             Status = "REWORK"
	StatusAwaitingValidation Status = "AWAITING_VALIDATION"
	StatusCalibration        Status = "CALIBRATION"
	StatusCompleted          Status = "COMPLETED"
)

// Action is a user-triggered workflow step.
type Action string

const (
	ActionSubmit             Action = "submit"
	ActionStartReview        Action = "start-review"
	ActionRequestRework      Action = "request-rework"
	ActionSendToValidation   Action = "send-to-validation"
	ActionRequestCalibration Action = "request-calibration"
	ActionResubmitCalibrated Action = "submit-calibration"
	ActionComplete           Action = "complete"
)

const (
	MaxReworkRounds      = 1
	MaxCalibrationRounds = 1
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReworkLimit       = errors.New("rework limit reached")
	ErrCalibrationLimit  = errors.New("calibration limit reached")
	ErrForbidden         = errors.New("role not allowed to perform this action")
	ErrLocked            = errors.New("assessment is locked")
	ErrUnknownAction     = errors.New("unknown action")
)

var validTransitions = map[Status]map[Status]bool{
	StatusDraft: {
		StatusSubmitted: true,
	},
	StatusSubmitted: {
		StatusInReview: true,
	},
	StatusInReview: {
		StatusRework:             true,
		StatusAwaitingValidation: true,
	},
	StatusRework: {
		StatusSubmitted: true,
	},
	StatusAwaitingValidation: {
		StatusCalibration: true,
		StatusCompleted:   true,
	},
	StatusCalibration: {
		StatusAwaitingValidation: true,
	},
}

type step struct {
	from  map[Status]bool
	to    Status
	roles map[string]bool
}

func roles(r ...string) map[string]bool {
	m := map[string]bool{ctxkeys.RoleSuperAdmin: true}
	for _, x := range r {
		m[x] = true
	}
	return m
}

var steps = map[Action]step{
	ActionSubmit: {
		from:  map[Status]bool{StatusDraft: true, StatusRework: true},
		to:    StatusSubmitted,
		roles: roles(ctxkeys.RoleBLGU),
	},
	ActionStartReview: {
		from:  map[Status]bool{StatusSubmitted: true},
		to:    StatusInReview,
		roles: roles(ctxkeys.RoleAssessor),
	},
	ActionRequestRework: {
		from:  map[Status]bool{StatusInReview: true},
		to:    StatusRework,
		roles: roles(ctxkeys.RoleAssessor),
	},
	ActionSendToValidation: {
		from:  map[Status]bool{StatusInReview: true},
		to:    StatusAwaitingValidation,
		roles: roles(ctxkeys.RoleAssessor),
	},
	ActionRequestCalibration: {
		from:  map[Status]bool{StatusAwaitingValidation: true},
		to:    StatusCalibration,
		roles: roles(ctxkeys.RoleValidator),
	},
	ActionResubmitCalibrated: {
		from:  map[Status]bool{StatusCalibration: true},
		to:    StatusAwaitingValidation,
		roles: roles(ctxkeys.RoleBLGU),
	},
	ActionComplete: {
		from:  map[Status]bool{StatusAwaitingValidation: true},
		to:    StatusCompleted,
		roles: roles(ctxkeys.RoleValidator, ctxkeys.RoleMLGOO),
	},
}

// Assessment is the slice of assessment state the workflow needs.
type Assessment struct {
	Status           Status
	ReworkCount      int
	CalibrationCount int
	IsLocked         bool
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted
}

func IsValidStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok || s == StatusCompleted
}

// ValidateTransition checks a raw status change against the state graph.
func ValidateTransition(from, to Status) error {
	if IsTerminal(from) {
		return fmt.Errorf("%w: cannot leave terminal status %q", ErrInvalidTransition, from)
	}
	allowed, ok := validTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	if !allowed[to] {
		return fmt.Errorf("%w: %q → %q", ErrInvalidTransition, from, to)
	}
	return nil
}

// ParseAction maps a URL segment to an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := steps[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
	return a, nil
}

// Apply performs action on behalf of role and returns the updated state.
// The input is never modified.
func Apply(a Assessment, action Action, role string) (Assessment, error) {
	st, ok := steps[action]
	if !ok {
		return a, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if !st.roles[role] {
		return a, fmt.Errorf("%w: %s cannot %s", ErrForbidden, role, action)
	}
	if !st.from[a.Status] {
		return a, fmt.Errorf("%w: cannot %s from %q", ErrInvalidTransition, action, a.Status)
	}
	if err := ValidateTransition(a.Status, st.to); err != nil {
		return a, err
	}

	switch action {
	case ActionSubmit:
		if a.IsLocked {
			return a, ErrLocked
		}
	case ActionRequestRework:
		if a.ReworkCount >= MaxReworkRounds {
			return a, fmt.Errorf("%w: %d of %d rounds used", ErrReworkLimit, a.ReworkCount, MaxReworkRounds)
		}
		a.ReworkCount++
	case ActionRequestCalibration:
		if a.CalibrationCount >= MaxCalibrationRounds {
			return a, fmt.Errorf("%w: %d of %d rounds used", ErrCalibrationLimit, a.CalibrationCount, MaxCalibrationRounds)
		}
		a.CalibrationCount++
	}

	a.Status = st.to
	return a, nil
}

// CanEditResponses reports whether BLGU users may change answers and files.
func CanEditResponses(a Assessment) bool {
	if a.IsLocked {
		return false
	}
	switch a.Status {
	case StatusDraft, StatusRework, StatusCalibration:
		return true
	}
	return false
}

// Lockable reports whether the deadline sweeper may lock the assessment.
func Lockable(s Status) bool {
	return s == StatusDraft || s == StatusRework
}
