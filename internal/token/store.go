// Package token persists per-session browser state: the cart token, the
// auth bearer token with its customer record, and display preferences.
//
// The store is deliberately infallible from the caller's side: when the
// backing storage is unavailable, reads return zero values (guest cart,
// logged out) and writes no-op. Failures are logged, never surfaced.
package token

import (
	"context"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

type Store interface {
	GetCartToken(ctx context.Context, sessionID string) string
	SetCartToken(ctx context.Context, sessionID, token string)
	ClearCartToken(ctx context.Context, sessionID string)

	GetAuth(ctx context.Context, sessionID string) (string, *domain.Customer)
	SetAuth(ctx context.Context, sessionID, bearer string, customer domain.Customer)
	ClearAuth(ctx context.Context, sessionID string)

	GetPreferences(ctx context.Context, sessionID string) (domain.Preferences, bool)
	SetPreferences(ctx context.Context, sessionID string, prefs domain.Preferences)
}
