package session

import (
	"context"
	"errors"
	"time"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/events"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

// ErrConfirmationRequired gates bulk destructive operations behind an
// explicit confirmation from the user.
var ErrConfirmationRequired = errors.New("confirmation required")

type WishlistAPI interface {
	FetchWishlist(ctx context.Context, bearer string) ([]domain.Product, error)
	AddToWishlist(ctx context.Context, bearer, productID string) ([]domain.Product, error)
	RemoveFromWishlist(ctx context.Context, bearer, productID string) ([]domain.Product, error)
	ClearWishlist(ctx context.Context, bearer string) error
}

// WishlistService exposes the liked-products set. Unauthenticated
// sessions get an empty, unfetched snapshot and a login prompt; there is
// no guest wishlist.
type WishlistService struct {
	api  WishlistAPI
	auth *AuthService
	bus  events.Publisher
}

func NewWishlistService(api WishlistAPI, auth *AuthService, bus events.Publisher) *WishlistService {
	return &WishlistService{api: api, auth: auth, bus: bus}
}

func (s *WishlistService) Fetch(ctx context.Context, sessionID string) (*domain.Wishlist, error) {
	bearer, _ := s.auth.Current(ctx, sessionID)
	if bearer == "" {
		return &domain.Wishlist{Fetched: false}, ErrLoginRequired
	}

	items, err := s.api.FetchWishlist(ctx, bearer)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.auth.HandleUnauthorized(ctx, sessionID)
		}
		return nil, err
	}

	return &domain.Wishlist{Items: items, Fetched: true}, nil
}

func (s *WishlistService) Add(ctx context.Context, sessionID, productID string) (*domain.Wishlist, error) {
	bearer, _ := s.auth.Current(ctx, sessionID)
	if bearer == "" {
		return nil, ErrLoginRequired
	}

	items, err := s.api.AddToWishlist(ctx, bearer, productID)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.auth.HandleUnauthorized(ctx, sessionID)
		}
		return nil, err
	}

	return &domain.Wishlist{Items: items, Fetched: true}, nil
}

func (s *WishlistService) Remove(ctx context.Context, sessionID, productID string) (*domain.Wishlist, error) {
	bearer, _ := s.auth.Current(ctx, sessionID)
	if bearer == "" {
		return nil, ErrLoginRequired
	}

	items, err := s.api.RemoveFromWishlist(ctx, bearer, productID)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.auth.HandleUnauthorized(ctx, sessionID)
		}
		return nil, err
	}

	return &domain.Wishlist{Items: items, Fetched: true}, nil
}

// Clear removes every liked product. It refuses to touch the upstream
// until the caller has confirmed the action.
func (s *WishlistService) Clear(ctx context.Context, sessionID string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}

	bearer, _ := s.auth.Current(ctx, sessionID)
	if bearer == "" {
		return ErrLoginRequired
	}

	before, err := s.api.FetchWishlist(ctx, bearer)
	if err != nil {
		if upstream.IsUnauthorized(err) {
			s.auth.HandleUnauthorized(ctx, sessionID)
		}
		return err
	}

	if err := s.api.ClearWishlist(ctx, bearer); err != nil {
		if upstream.IsUnauthorized(err) {
			s.auth.HandleUnauthorized(ctx, sessionID)
		}
		return err
	}

	if err := s.bus.Publish(ctx, events.WishlistCleared, events.WishlistClearedEvent{
		SessionID: sessionID,
		Count:     len(before),
		ClearedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish wishlist cleared event", "error", err)
	}
	return nil
}
