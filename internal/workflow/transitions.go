package workflow

import (
	"errors"

	"github.com/econsulaire/portal/internal/models"
)

// Action is a named workflow operation requested by consular staff.
type Action string

const (
	ActionTake             Action = "take"
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
	ActionRequestDocuments Action = "request_documents"
	ActionReadyForPickup   Action = "ready_for_pickup"
	ActionClose            Action = "close"
)

// Typed workflow failures. Handlers map these onto HTTP status codes.
var (
	ErrNotFound          = errors.New("application not found")
	ErrWrongUnit         = errors.New("application belongs to another consular unit")
	ErrAlreadyTaken      = errors.New("application already taken by another agent")
	ErrNotProcessor      = errors.New("application is assigned to another agent")
	ErrCommentRequired   = errors.New("a comment is required to process the application")
	ErrInvalidTransition = errors.New("transition not allowed from the current status")
	ErrInvalidStatus     = errors.New("invalid target status")
	ErrTerminalState     = errors.New("application is in a terminal state")
)

type transitionKey struct {
	from   models.Status
	action Action
}

// transitions is the closed table of agent-driven status moves. Anything
// absent here is rejected with ErrInvalidTransition; the status column is
// never a free-form field.
var transitions = map[transitionKey]models.Status{
	{models.StatusSubmitted, ActionTake}: models.StatusProcessing,

	{models.StatusProcessing, ActionApprove}:          models.StatusApproved,
	{models.StatusProcessing, ActionReject}:           models.StatusRejected,
	{models.StatusProcessing, ActionRequestDocuments}: models.StatusNeedsDocuments,
	{models.StatusProcessing, ActionReadyForPickup}:   models.StatusReadyForPickup,
	{models.StatusProcessing, ActionClose}:            models.StatusClosed,

	// After additional documents arrive the same agent resumes the file.
	{models.StatusNeedsDocuments, ActionApprove}:        models.StatusApproved,
	{models.StatusNeedsDocuments, ActionReject}:         models.StatusRejected,
	{models.StatusNeedsDocuments, ActionReadyForPickup}: models.StatusReadyForPickup,
	{models.StatusNeedsDocuments, ActionClose}:          models.StatusClosed,

	{models.StatusReadyForPickup, ActionClose}: models.StatusClosed,
}

// Next resolves the target status for an action from the given state.
func Next(from models.Status, action Action) (models.Status, error) {
	next, ok := transitions[transitionKey{from, action}]
	if !ok {
		return "", ErrInvalidTransition
	}
	return next, nil
}

// IsTerminal reports whether no agent action can leave the status.
func IsTerminal(s models.Status) bool {
	switch s {
	case models.StatusApproved, models.StatusRejected, models.StatusClosed:
		return true
	}
	return false
}

// auditAction returns the audit-log label recorded for an action.
func auditAction(a Action) string {
	switch a {
	case ActionTake:
		return "take_application"
	case ActionApprove:
		return "approve_application"
	case ActionReject:
		return "reject_application"
	case ActionRequestDocuments:
		return "request_documents"
	case ActionReadyForPickup:
		return "ready_for_pickup"
	case ActionClose:
		return "close_application"
	}
	return string(a)
}
