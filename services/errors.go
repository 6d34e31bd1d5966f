// services/errors.go - Typed lifecycle errors
package services

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindConflict      ErrorKind = "conflict"
	KindInternal      ErrorKind = "internal"
)

// Reasons attached to errors so clients can tell races from user mistakes
const (
	ReasonNoLongerPending        = "no_longer_pending"
	ReasonInvalidToken           = "invalid_token"
	ReasonProjectAlreadyAssigned = "project_already_assigned"
	ReasonInvitationFrozen       = "invitation_frozen"
	ReasonTeamArchived           = "team_archived"
	ReasonProjectNotOpen         = "project_not_open"
	ReasonNotCancellable         = "not_cancellable"
	ReasonNotDeletable           = "not_deletable"
	ReasonNotAccepted            = "not_accepted"
	ReasonNotCompleted           = "not_completed"
	ReasonDuplicate              = "duplicate"
)

// Error is the only error type the lifecycle returns for expected failures.
type Error struct {
	Kind    ErrorKind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func AuthorizationError(message string) *Error {
	return &Error{Kind: KindAuthorization, Message: message}
}

func NotFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func ConflictError(message, reason string) *Error {
	return &Error{Kind: KindConflict, Message: message, Reason: reason}
}

// withReason returns a copy carrying reason.
func (e *Error) withReason(reason string) *Error {
	out := *e
	out.Reason = reason
	return &out
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason string carried by err, if any.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
