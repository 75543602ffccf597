package handlers

import (
	"net/http"

	"github.com/dukkan/storefront-gateway/internal/checkout"
	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/session"
)

type CheckoutHandler struct {
	Checkout *checkout.Service
	Cart     *session.CartService
}

func NewCheckoutHandler(svc *checkout.Service, cart *session.CartService) *CheckoutHandler {
	return &CheckoutHandler{Checkout: svc, Cart: cart}
}

// Start hands the session's cart to hosted payment. The Idempotency-Key
// header makes browser retries return the original checkout session.
func (h *CheckoutHandler) Start(w http.ResponseWriter, r *http.Request) {
	sessionID := gwmiddleware.SessionID(r)
	cartToken := h.Cart.SyncToken(r.Context(), sessionID)

	result, err := h.Checkout.Start(r.Context(), sessionID, cartToken, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusCreated, result)
}
