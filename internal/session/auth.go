package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/token"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/events"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

// ErrLoginRequired is returned by auth-gated operations when the session
// holds no bearer token.
var ErrLoginRequired = errors.New("login required")

// AccountAPI is the slice of the commerce client the auth aggregate needs.
type AccountAPI interface {
	GetCustomer(ctx context.Context, bearer string) (*domain.Customer, error)
	UpdateCustomer(ctx context.Context, bearer string, req domain.UpdateCustomerRequest) (*domain.Customer, error)
	ListOrders(ctx context.Context, bearer string, limit, offset int) ([]domain.Order, error)
}

// AuthService holds the authenticated identity of each browser session.
// It owns the one non-obvious rule in the gateway: the cart token
// outlives the auth session in both directions. Logging out keeps the
// cart token, and logging in never overwrites an existing guest token
// with a server-issued one.
type AuthService struct {
	api    AccountAPI
	tokens token.Store
	bus    events.Publisher
}

func NewAuthService(api AccountAPI, tokens token.Store, bus events.Publisher) *AuthService {
	return &AuthService{api: api, tokens: tokens, bus: bus}
}

// SetAuth installs a new authenticated identity. It does not touch the
// cart token; ReconcileCartToken handles that separately.
func (s *AuthService) SetAuth(ctx context.Context, sessionID string, bearer string, customer domain.Customer) {
	s.tokens.SetAuth(ctx, sessionID, bearer, customer)
}

// ReconcileCartToken applies the guest-cart continuity rule after a
// successful authentication. An existing guest token is always kept (the
// backend merges the guest cart into the account server-side); only a
// session with no cart at all adopts the server-issued token. Reports
// whether a guest cart was carried across.
func (s *AuthService) ReconcileCartToken(ctx context.Context, sessionID, serverIssued string) bool {
	guestToken := s.tokens.GetCartToken(ctx, sessionID)
	if guestToken != "" {
		logger.InfoContext(ctx, "Preserving guest cart token across authentication")
		if err := s.bus.Publish(ctx, events.CartMerged, events.CartMergedEvent{
			SessionID:      sessionID,
			GuestCartToken: guestToken,
			MergedAt:       time.Now(),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish cart merged event", "error", err)
		}
		return true
	}

	if serverIssued != "" {
		s.tokens.SetCartToken(ctx, sessionID, serverIssued)
	}
	return false
}

// Current returns the session's bearer token and customer, if any.
func (s *AuthService) Current(ctx context.Context, sessionID string) (string, *domain.Customer) {
	return s.tokens.GetAuth(ctx, sessionID)
}

func (s *AuthService) IsAuthenticated(ctx context.Context, sessionID string) bool {
	bearer, _ := s.tokens.GetAuth(ctx, sessionID)
	return bearer != ""
}

// UpdateCustomer merges a partial profile edit through the upstream
// account endpoint and refreshes the stored customer record.
func (s *AuthService) UpdateCustomer(ctx context.Context, sessionID string, req domain.UpdateCustomerRequest) (*domain.Customer, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	bearer, stored := s.tokens.GetAuth(ctx, sessionID)
	if bearer == "" {
		return nil, ErrLoginRequired
	}

	customer, err := s.api.UpdateCustomer(ctx, bearer, req)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.HandleUnauthorized(ctx, sessionID)
		}
		return nil, err
	}
	if customer == nil {
		// Backend returned no body; merge locally so the stored record
		// stays current.
		merged := *stored
		req.ApplyTo(&merged)
		customer = &merged
	}

	s.tokens.SetAuth(ctx, sessionID, bearer, *customer)
	return customer, nil
}

// GetProfile returns the stored customer record, falling back to the
// upstream account endpoint when the record is missing.
func (s *AuthService) GetProfile(ctx context.Context, sessionID string) (*domain.Customer, error) {
	bearer, stored := s.tokens.GetAuth(ctx, sessionID)
	if bearer == "" {
		return nil, ErrLoginRequired
	}
	if stored != nil && stored.Name != "" {
		return stored, nil
	}

	customer, err := s.api.GetCustomer(ctx, bearer)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.HandleUnauthorized(ctx, sessionID)
		}
		return nil, err
	}

	s.tokens.SetAuth(ctx, sessionID, bearer, *customer)
	return customer, nil
}

func (s *AuthService) ListOrders(ctx context.Context, sessionID string, limit, offset int) ([]domain.Order, error) {
	bearer, _ := s.tokens.GetAuth(ctx, sessionID)
	if bearer == "" {
		return nil, ErrLoginRequired
	}

	orders, err := s.api.ListOrders(ctx, bearer, limit, offset)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.HandleUnauthorized(ctx, sessionID)
		}
		return nil, err
	}
	return orders, nil
}

// Logout clears the bearer token and customer record. The cart token
// survives so the guest cart is still there after logging out.
func (s *AuthService) Logout(ctx context.Context, sessionID string) {
	s.tokens.ClearAuth(ctx, sessionID)
	s.publishRevoked(ctx, sessionID, "logout")
}

// HandleUnauthorized applies the forced-logout rule for any upstream 401
// on an auth-gated call: clear the auth session, keep the cart token.
func (s *AuthService) HandleUnauthorized(ctx context.Context, sessionID string) {
	logger.InfoContext(ctx, "Upstream rejected bearer token, revoking auth session")
	s.tokens.ClearAuth(ctx, sessionID)
	s.publishRevoked(ctx, sessionID, "unauthorized")
}

func (s *AuthService) publishRevoked(ctx context.Context, sessionID, reason string) {
	if err := s.bus.Publish(ctx, events.SessionRevoked, events.SessionRevokedEvent{
		SessionID: sessionID,
		Reason:    reason,
		RevokedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish session revoked event", "error", err)
	}
}
