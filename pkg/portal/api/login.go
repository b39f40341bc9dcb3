package api

import (
	"net/http"

	"github.com/ggicci/httpin"
	"github.com/go-chi/render"

	"github.com/tendant/simple-portal/pkg/client"
	apperrors "github.com/tendant/simple-portal/pkg/errors"
	"github.com/tendant/simple-portal/pkg/loginflow"
	"github.com/tendant/simple-portal/pkg/portal"
)

// GetView handles GET /view
func (h *Handle) GetView(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, ViewResponse{View: visitor(r).View})
}

// SubmitCredentials handles POST /login/credentials
func (h *Handle) SubmitCredentials(w http.ResponseWriter, r *http.Request) {
	v := visitor(r)
	input := r.Context().Value(httpin.Input).(*CredentialsInput)
	var req CredentialsRequest
	if input.Payload != nil {
		req = *input.Payload
	}

	ctx, cancel := h.callContext(r)
	defer cancel()
	_, err := v.Shell.Machine().SubmitCredentials(ctx, req.Email, req.Password)
	h.renderStep(w, r, v.Shell, err)
}

// SubmitCode handles POST /login/code
func (h *Handle) SubmitCode(w http.ResponseWriter, r *http.Request) {
	v := visitor(r)
	input := r.Context().Value(httpin.Input).(*CodeInput)
	var req CodeRequest
	if input.Payload != nil {
		req = *input.Payload
	}

	ctx, cancel := h.callContext(r)
	defer cancel()
	_, err := v.Shell.Machine().SubmitCode(ctx, req.Code)
	h.renderStep(w, r, v.Shell, err)
}

// ReturnToStart handles POST /login/restart
func (h *Handle) ReturnToStart(w http.ResponseWriter, r *http.Request) {
	v := visitor(r)
	_, err := v.Shell.Machine().ReturnToStart()
	h.renderStep(w, r, v.Shell, err)
}

// Logout handles POST /logout. The visitor is signed out locally even when
// the auth service rejects the call.
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	v := visitor(r)
	ctx, cancel := h.callContext(r)
	defer cancel()
	if err := v.Shell.SignOut(ctx); err != nil {
		h.logger.Warn("sign-out failed at the auth service", "shell", v.Shell.ID(), "err", err)
	}
	render.JSON(w, r, ViewResponse{View: v.Shell.View(r.Context())})
}

func (h *Handle) renderStep(w http.ResponseWriter, r *http.Request, shell *portal.Shell, err error) {
	view := shell.View(r.Context())
	if err == nil {
		render.JSON(w, r, ViewResponse{View: view})
		return
	}

	flowErr, ok := loginflow.AsError(err)
	if !ok {
		h.logger.Error("login step failed", "shell", shell.ID(), "err", err)
		client.RenderError(w, r, apperrors.InternalWrap(err, "login failed"))
		return
	}
	render.Status(r, flowStatus(flowErr.Type))
	render.JSON(w, r, LoginErrorResponse{Error: flowErr, View: view})
}

func flowStatus(typ string) int {
	switch typ {
	case loginflow.ErrorTypeMissingFields:
		return http.StatusBadRequest
	case loginflow.ErrorTypeInvalidCredentials, loginflow.ErrorTypeCodeRejected:
		return http.StatusUnauthorized
	case loginflow.ErrorTypeWrongStep, loginflow.ErrorTypeBusy, loginflow.ErrorTypeStale,
		loginflow.ErrorTypeSessionConflict:
		return http.StatusConflict
	case loginflow.ErrorTypeCodeNotSent, loginflow.ErrorTypeVerificationIncomplete:
		return http.StatusBadGateway
	case loginflow.ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
