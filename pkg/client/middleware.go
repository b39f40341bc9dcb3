package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/portal"
	"github.com/tendant/simple-portal/pkg/role"
)

// ErrorResponse is the JSON body of a rejected request.
type ErrorResponse struct {
	Code    apperrors.ErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RenderError writes err with the status its code maps to.
func RenderError(w http.ResponseWriter, r *http.Request, err *apperrors.Error) {
	render.Status(r, err.HTTPStatusCode())
	render.JSON(w, r, ErrorResponse{Code: err.Code, Message: err.Message, Details: err.Details})
}

// RequireDashboard rejects visitors that are not signed in with 401.
// Must be used after the middleware that binds the visitor.
func RequireDashboard(next http.Handler) http.Handler {
	return RequireRole()(next)
}

// RequireRole returns a middleware that checks the visitor's resolved role.
// Returns 401 Unauthorized when the visitor is not on a dashboard.
// Returns 403 Forbidden when the role is not one of roles. With no roles any
// dashboard passes.
func RequireRole(roles ...role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := FromContext(r.Context())
			if !ok {
				slog.Error("Failed to get visitor from context")
				RenderError(w, r, apperrors.Unauthorized("Sign in to continue."))
				return
			}

			switch v.View.Kind {
			case portal.ViewDashboard:
			case portal.ViewAccessDenied:
				slog.Warn("Visitor without a role hit a protected resource", "visitor", v, "path", r.URL.Path)
				RenderError(w, r, apperrors.New(apperrors.ErrCodeInsufficientPermissions, "Your account has no access to the portal."))
				return
			default:
				slog.Debug("Unauthenticated request to protected resource", "visitor", v, "path", r.URL.Path)
				RenderError(w, r, apperrors.Unauthorized("Sign in to continue."))
				return
			}

			if len(roles) > 0 && !hasRole(v.View.Role, roles) {
				slog.Warn("Visitor lacks required role",
					"visitor", v,
					"role", v.View.Role,
					"requiredRoles", roles)
				RenderError(w, r, apperrors.New(apperrors.ErrCodeInsufficientPermissions, "Forbidden: insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func hasRole(r role.Role, roles []role.Role) bool {
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}
