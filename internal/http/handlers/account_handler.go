package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dukkan/storefront-gateway/internal/domain"
	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/session"
)

type AccountHandler struct {
	Auth *session.AuthService
}

func NewAccountHandler(auth *session.AuthService) *AccountHandler {
	return &AccountHandler{Auth: auth}
}

func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.profile)
	r.Patch("/", h.update)
	r.Get("/orders", h.orders)
	return r
}

func (h *AccountHandler) profile(w http.ResponseWriter, r *http.Request) {
	customer, err := h.Auth.GetProfile(r.Context(), gwmiddleware.SessionID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, customer)
}

func (h *AccountHandler) update(w http.ResponseWriter, r *http.Request) {
	var in domain.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	customer, err := h.Auth.UpdateCustomer(r.Context(), gwmiddleware.SessionID(r), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, customer)
}

func (h *AccountHandler) orders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.Auth.ListOrders(r.Context(), gwmiddleware.SessionID(r), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
