package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dukkan/storefront-gateway/internal/authflow"
	"github.com/dukkan/storefront-gateway/internal/checkout"
	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/session"
	"github.com/dukkan/storefront-gateway/internal/upstream"
)

// writeServiceError maps service-layer errors onto the wire. Upstream
// API errors pass through with their original status and message, so the
// storefront shows exactly what the commerce backend said.
func writeServiceError(w http.ResponseWriter, err error) {
	var cooldown *authflow.CooldownError
	if errors.As(err, &cooldown) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cooldown.Remaining.Seconds()+0.999)))
		response.WriteError(w, http.StatusTooManyRequests, cooldown.Error(), response.CodeCooldown)
		return
	}

	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) {
		response.WriteError(w, apiErr.Status, apiErr.Message, response.CodeUpstreamError)
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidPhone):
		response.BadRequest(w, err.Error())
	case errors.Is(err, session.ErrLoginRequired):
		response.WriteError(w, http.StatusUnauthorized, err.Error(), response.CodeLoginRequired)
	case errors.Is(err, session.ErrConfirmationRequired):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeConfirmationRequired)
	case errors.Is(err, authflow.ErrFlowNotFound):
		response.WriteError(w, http.StatusNotFound, err.Error(), response.CodeFlowNotFound)
	case errors.Is(err, authflow.ErrWrongStep):
		response.WriteError(w, http.StatusConflict, err.Error(), response.CodeWrongStep)
	case errors.Is(err, authflow.ErrOTPExpired):
		response.WriteError(w, http.StatusGone, err.Error(), response.CodeOTPExpired)
	case errors.Is(err, authflow.ErrTooManyAttempts):
		response.WriteError(w, http.StatusTooManyRequests, err.Error(), response.CodeTooManyAttempts)
	case errors.Is(err, authflow.ErrRateLimited):
		response.RateLimit(w, err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		response.WriteError(w, http.StatusBadRequest, err.Error(), response.CodeEmptyCart)
	default:
		response.WriteError(w, http.StatusBadGateway, "commerce backend unavailable", response.CodeUpstreamError)
	}
}
