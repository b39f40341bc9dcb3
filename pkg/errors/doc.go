// Package errors provides structured error handling with error codes for the
// portal.
//
// Services return *Error values carrying a typed code, a human-readable
// message and optional details. HTTP handlers map the code to a status with
// MapErrorCodeToHTTPStatus.
//
// # Basic Usage
//
//	import apperrors "github.com/tendant/simple-portal/pkg/errors"
//
//	err := apperrors.New(apperrors.ErrCodeNotFound, "profile not found")
//	err := apperrors.InvalidInput("week", "must be YYYY-MM-DD")
//	err := apperrors.Wrap(dbErr, apperrors.ErrCodeInternal, "failed to list cases")
//
// # External Service Errors
//
// FromBackend translates errors returned by the external service. The
// service's message is preserved so it can be shown to the visitor:
//
//	p, err := store.UpdateProfile(ctx, id, update)
//	if err != nil {
//		return nil, apperrors.FromBackend(err, "profile")
//	}
//
// # Error Inspection
//
//	if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
//		// Handle not found case
//	}
//	code := apperrors.GetCode(err)
//	details := apperrors.GetDetails(err)
//
// Error code to HTTP status mapping:
//   - ErrCodeInvalidInput, ErrCodeValidationFailed → 400 Bad Request
//   - ErrCodeUnauthorized → 401 Unauthorized
//   - ErrCodeForbidden → 403 Forbidden
//   - ErrCodeNotFound → 404 Not Found
//   - ErrCodeConflict, ErrCodeUserAlreadyExists → 409 Conflict
//   - ErrCodeRateLimitExceeded → 429 Too Many Requests
//   - ErrCodeResourceUnavailable → 503 Service Unavailable
//   - ErrCodeInternal → 500 Internal Server Error
package errors
