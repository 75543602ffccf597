package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dukkan/storefront-gateway/internal/domain"
	gwmiddleware "github.com/dukkan/storefront-gateway/internal/http/middleware"
	"github.com/dukkan/storefront-gateway/internal/http/response"
	"github.com/dukkan/storefront-gateway/internal/token"
	"github.com/dukkan/storefront-gateway/pkg/config"
)

type PreferencesHandler struct {
	Tokens   token.Store
	Defaults config.StoreConfig
}

func NewPreferencesHandler(tokens token.Store, defaults config.StoreConfig) *PreferencesHandler {
	return &PreferencesHandler{Tokens: tokens, Defaults: defaults}
}

func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	prefs, ok := h.Tokens.GetPreferences(r.Context(), gwmiddleware.SessionID(r))
	if !ok {
		prefs = domain.Preferences{
			Currency: h.Defaults.DefaultCurrency,
			Locale:   h.Defaults.DefaultLocale,
		}
	}
	response.WriteJSON(w, http.StatusOK, prefs)
}

func (h *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	var in domain.Preferences
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if in.Currency == "" {
		in.Currency = h.Defaults.DefaultCurrency
	}
	if in.Locale == "" {
		in.Locale = h.Defaults.DefaultLocale
	}

	h.Tokens.SetPreferences(r.Context(), gwmiddleware.SessionID(r), in)
	response.WriteJSON(w, http.StatusOK, in)
}
