package errors

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tendant/simple-portal/pkg/backend"
)

// codeForStatus classifies a status reported by the external service.
func codeForStatus(status int) ErrorCode {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrCodeInvalidInput
	case status == http.StatusUnauthorized:
		return ErrCodeUnauthorized
	case status == http.StatusForbidden:
		return ErrCodeForbidden
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	case status == http.StatusConflict:
		return ErrCodeConflict
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimitExceeded
	case status >= 500:
		return ErrCodeResourceUnavailable
	default:
		return ErrCodeInternal
	}
}

// FromBackend converts an error returned by the external service into a
// structured error. The service's own message is kept when it has one.
// Errors that are already structured pass through unchanged.
func FromBackend(err error, resource string) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var be *backend.Error
	if errors.As(err, &be) {
		code := codeForStatus(be.Status)
		if strings.Contains(strings.ToLower(be.Message), "already registered") {
			code = ErrCodeUserAlreadyExists
		}
		return Wrap(err, code, be.Message)
	}
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return Wrap(err, ErrCodeNotFound, resource+" not found")
	case errors.Is(err, backend.ErrUnavailable):
		return Wrap(err, ErrCodeResourceUnavailable, "the service is unavailable")
	case errors.Is(err, backend.ErrInvalidInput):
		return Wrap(err, ErrCodeInvalidInput, err.Error())
	}
	return Wrap(err, ErrCodeInternal, "failed to access "+resource)
}
