package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dukkan/storefront-gateway/internal/authflow"
	"github.com/dukkan/storefront-gateway/internal/domain"
	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/session"
)

// AuthFlowHandler exposes the phone/OTP/registration flow plus logout.
type AuthFlowHandler struct {
	Flow *authflow.Controller
	Auth *session.AuthService
}

func NewAuthFlowHandler(flow *authflow.Controller, auth *session.AuthService) *AuthFlowHandler {
	return &AuthFlowHandler{Flow: flow, Auth: auth}
}

func (h *AuthFlowHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/flow", h.open)
	r.Get("/flow/{flowID}", h.status)
	r.Delete("/flow/{flowID}", h.close)
	r.Post("/flow/phone", h.submitPhone)
	r.Post("/flow/verify", h.verify)
	r.Post("/flow/resend", h.resend)
	r.Post("/flow/register", h.register)
	r.Post("/logout", h.logout)
	return r
}

func (h *AuthFlowHandler) open(w http.ResponseWriter, r *http.Request) {
	status, err := h.Flow.Open(r.Context(), gwmiddleware.SessionID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, status)
}

func (h *AuthFlowHandler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.Flow.GetStatus(r.Context(), chi.URLParam(r, "flowID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, status)
}

func (h *AuthFlowHandler) close(w http.ResponseWriter, r *http.Request) {
	if err := h.Flow.Close(r.Context(), chi.URLParam(r, "flowID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthFlowHandler) submitPhone(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FlowID string `json:"flow_id"`
		Phone  string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.FlowID == "" || in.Phone == "" {
		response.BadRequest(w, "flow_id and phone are required")
		return
	}

	result, err := h.Flow.SubmitPhone(r.Context(), in.FlowID, in.Phone)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

func (h *AuthFlowHandler) verify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FlowID string `json:"flow_id"`
		Code   string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.FlowID == "" || in.Code == "" {
		response.BadRequest(w, "flow_id and code are required")
		return
	}

	result, err := h.Flow.VerifyCode(r.Context(), in.FlowID, in.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

func (h *AuthFlowHandler) resend(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FlowID string `json:"flow_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.FlowID == "" {
		response.BadRequest(w, "flow_id is required")
		return
	}

	result, err := h.Flow.Resend(r.Context(), in.FlowID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

func (h *AuthFlowHandler) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		FlowID  string                     `json:"flow_id"`
		Profile domain.RegistrationRequest `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.FlowID == "" {
		response.BadRequest(w, "flow_id and profile are required")
		return
	}

	result, err := h.Flow.Register(r.Context(), in.FlowID, in.Profile)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

func (h *AuthFlowHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.Auth.Logout(r.Context(), gwmiddleware.SessionID(r))
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
