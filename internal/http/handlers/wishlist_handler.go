package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/session"
)

type WishlistHandler struct {
	Wishlist *session.WishlistService
}

func NewWishlistHandler(wishlist *session.WishlistService) *WishlistHandler {
	return &WishlistHandler{Wishlist: wishlist}
}

func (h *WishlistHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.get)
	r.Post("/{productID}", h.add)
	r.Delete("/{productID}", h.remove)
	r.Delete("/", h.clear)
	return r
}

func (h *WishlistHandler) get(w http.ResponseWriter, r *http.Request) {
	wishlist, err := h.Wishlist.Fetch(r.Context(), gwmiddleware.SessionID(r))
	if err != nil {
		// An anonymous session still gets the empty snapshot alongside
		// the login prompt.
		if errors.Is(err, session.ErrLoginRequired) && wishlist != nil {
			response.WriteJSON(w, http.StatusUnauthorized, map[string]any{
				"wishlist": wishlist,
				"error":    err.Error(),
				"code":     response.CodeLoginRequired,
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, wishlist)
}

func (h *WishlistHandler) add(w http.ResponseWriter, r *http.Request) {
	wishlist, err := h.Wishlist.Add(r.Context(), gwmiddleware.SessionID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, wishlist)
}

func (h *WishlistHandler) remove(w http.ResponseWriter, r *http.Request) {
	wishlist, err := h.Wishlist.Remove(r.Context(), gwmiddleware.SessionID(r), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, wishlist)
}

func (h *WishlistHandler) clear(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Confirmed bool `json:"confirmed"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	if err := h.Wishlist.Clear(r.Context(), gwmiddleware.SessionID(r), in.Confirmed); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
