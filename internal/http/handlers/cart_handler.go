package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/session"
)

type CartHandler struct {
	Cart *session.CartService
}

func NewCartHandler(cart *session.CartService) *CartHandler {
	return &CartHandler{Cart: cart}
}

func (h *CartHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.get)
	r.Patch("/items/{productID}", h.updateQuantity)
	r.Delete("/items/{productID}", h.removeItem)
	r.Post("/coupon", h.applyCoupon)
	r.Delete("/coupon", h.removeCoupon)
	return r
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Cart.Fetch(r.Context(), gwmiddleware.SessionID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "quantity is required")
		return
	}

	cart, err := h.Cart.UpdateQuantity(r.Context(), gwmiddleware.SessionID(r), chi.URLParam(r, "productID"), in.Quantity)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Cart.RemoveItem(r.Context(), gwmiddleware.SessionID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "coupon code is required")
		return
	}

	cart, err := h.Cart.ApplyCoupon(r.Context(), gwmiddleware.SessionID(r), in.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	cart, err := h.Cart.RemoveCoupon(r.Context(), gwmiddleware.SessionID(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cart)
}
