package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dukkan/storefront-gateway/pkg/auth"
	"github.com/dukkan/storefront-gateway/pkg/config"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

type ctxKey string

const ctxSessionID ctxKey = "session_id"

// EnsureSession guarantees every request carries a browser session. A
// valid session cookie is parsed; anything else gets a fresh session id
// and a new signed cookie. The session id lands in the request context
// and in the log fields.
func EnsureSession(cfg config.SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""

			if cookie, err := r.Cookie(cfg.CookieName); err == nil {
				if claims, err := auth.ParseSessionToken(cookie.Value, cfg.JWTSecret); err == nil {
					sessionID = claims.SessionID
				}
			}

			if sessionID == "" {
				sessionID = uuid.NewString()
				token, err := auth.NewSessionToken(sessionID, cfg.JWTSecret, cfg.TTL)
				if err != nil {
					logger.ErrorContext(r.Context(), "Failed to sign session cookie", "error", err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(cfg.TTL.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), ctxSessionID, sessionID)
			ctx = context.WithValue(ctx, logger.SessionIDKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionID returns the browser session id installed by EnsureSession.
func SessionID(r *http.Request) string {
	if v := r.Context().Value(ctxSessionID); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
