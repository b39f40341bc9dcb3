package loginflow

import (
	"errors"

	"github.com/tendant/simple-portal/pkg/backend"
)

// Error type constants
const (
	ErrorTypeMissingFields          = "missing_fields"
	ErrorTypeInvalidCredentials     = "invalid_credentials"
	ErrorTypeSessionConflict        = "session_conflict"
	ErrorTypeCodeNotSent            = "code_not_sent"
	ErrorTypeCodeRejected           = "code_rejected"
	ErrorTypeVerificationIncomplete = "verification_incomplete"
	ErrorTypeServiceUnavailable     = "service_unavailable"
	ErrorTypeWrongStep              = "wrong_step"
	ErrorTypeBusy                   = "busy"
	ErrorTypeStale                  = "stale"
)

const (
	MessageMissingCredentials     = "Email and password are required."
	MessageMissingCode            = "Verification code is required."
	MessageSessionConflict        = "A temporary session conflict occurred. Please try again."
	MessageCodeNotSent            = "Could not send verification code. Please try again later."
	MessageVerificationIncomplete = "Could not verify the session. Please try again."
	MessageServiceUnavailable     = "The authentication service is unavailable. Please try again."
	MessageWrongStep              = "This step is not available right now."
	MessageBusy                   = "A request is already in progress."
	MessageStale                  = "The login attempt was cancelled."
)

// Error is a user-facing failure of one login step. None of them are fatal:
// the visitor can retry or return to the first step.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Type, so errors.Is(err, ErrBusy) works for any busy error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

var (
	ErrBusy      = &Error{Type: ErrorTypeBusy, Message: MessageBusy}
	ErrWrongStep = &Error{Type: ErrorTypeWrongStep, Message: MessageWrongStep}
	ErrStale     = &Error{Type: ErrorTypeStale, Message: MessageStale}
)

func newError(typ, msg string) *Error {
	return &Error{Type: typ, Message: msg}
}

// rejection turns a failed sign-in or verify into a user-facing error. The
// service's own message is shown verbatim; an unreachable service gets the
// generic unavailable message.
func rejection(typ string, err error) *Error {
	if msg, ok := backend.ServiceMessage(err); ok {
		return newError(typ, msg)
	}
	return newError(ErrorTypeServiceUnavailable, MessageServiceUnavailable)
}

// AsError extracts the flow error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
