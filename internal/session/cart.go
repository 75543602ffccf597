package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/token"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

// CartAPI is the slice of the commerce client the cart aggregate needs.
type CartAPI interface {
	FetchCart(ctx context.Context, tokens upstream.CartTokens) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, tokens upstream.CartTokens, productID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, tokens upstream.CartTokens, productID string) (*domain.Cart, error)
	ApplyCoupon(ctx context.Context, tokens upstream.CartTokens, code string) (*domain.Cart, error)
	RemoveCoupon(ctx context.Context, tokens upstream.CartTokens) (*domain.Cart, error)
}

// CartService owns cart state for browser sessions. Every successful
// call replaces the whole snapshot; failures leave state untouched and
// surface the upstream message unchanged.
//
// Mutations carry a per-session monotonic sequence number. Responses
// that settle after a newer one has already been applied are discarded,
// so a slow quantity update cannot clobber a later one.
type CartService struct {
	api    CartAPI
	tokens token.Store

	mu    sync.Mutex
	carts map[string]*cartState
}

type cartState struct {
	mu         sync.Mutex
	nextSeq    uint64
	appliedSeq uint64
	snapshot   *domain.Cart
}

func NewCartService(api CartAPI, tokens token.Store) *CartService {
	return &CartService{
		api:    api,
		tokens: tokens,
		carts:  make(map[string]*cartState),
	}
}

func (s *CartService) state(sessionID string) *cartState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.carts[sessionID]; ok {
		return st
	}
	st := &cartState{}
	s.carts[sessionID] = st
	return st
}

func (s *CartService) cartTokens(ctx context.Context, sessionID string) upstream.CartTokens {
	bearer, _ := s.tokens.GetAuth(ctx, sessionID)
	return upstream.CartTokens{
		CartToken: s.tokens.GetCartToken(ctx, sessionID),
		Bearer:    bearer,
	}
}

// Fetch retrieves the current cart. If the session had no cart token and
// the backend issued one, the token is persisted for all later calls.
// A 401 here never clears the cart token.
func (s *CartService) Fetch(ctx context.Context, sessionID string) (*domain.Cart, error) {
	st := s.state(sessionID)
	seq := st.begin()

	tokens := s.cartTokens(ctx, sessionID)
	cart, err := s.api.FetchCart(ctx, tokens)
	if err != nil {
		return nil, err
	}

	if tokens.CartToken == "" && cart.Token != "" {
		s.tokens.SetCartToken(ctx, sessionID, cart.Token)
	}
	s.checkTotals(ctx, cart)

	return st.apply(ctx, seq, cart), nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1; remove the item instead", domain.ErrValidation)
	}

	st := s.state(sessionID)
	seq := st.begin()

	cart, err := s.api.UpdateQuantity(ctx, s.cartTokens(ctx, sessionID), productID, quantity)
	if err != nil {
		return nil, err
	}
	s.checkTotals(ctx, cart)

	return st.apply(ctx, seq, cart), nil
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (*domain.Cart, error) {
	st := s.state(sessionID)
	seq := st.begin()

	cart, err := s.api.RemoveItem(ctx, s.cartTokens(ctx, sessionID), productID)
	if err != nil {
		return nil, err
	}

	return st.apply(ctx, seq, cart), nil
}

func (s *CartService) ApplyCoupon(ctx context.Context, sessionID, code string) (*domain.Cart, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: coupon code is required", domain.ErrValidation)
	}

	st := s.state(sessionID)
	seq := st.begin()

	cart, err := s.api.ApplyCoupon(ctx, s.cartTokens(ctx, sessionID), code)
	if err != nil {
		return nil, err
	}
	s.checkTotals(ctx, cart)

	return st.apply(ctx, seq, cart), nil
}

func (s *CartService) RemoveCoupon(ctx context.Context, sessionID string) (*domain.Cart, error) {
	st := s.state(sessionID)
	seq := st.begin()

	cart, err := s.api.RemoveCoupon(ctx, s.cartTokens(ctx, sessionID))
	if err != nil {
		return nil, err
	}

	return st.apply(ctx, seq, cart), nil
}

// SyncToken re-reads the persisted cart token. Called defensively before
// auth-sensitive operations so a token written by another tab wins.
func (s *CartService) SyncToken(ctx context.Context, sessionID string) string {
	return s.tokens.GetCartToken(ctx, sessionID)
}

// Snapshot returns the last applied cart without a network call, if any.
func (s *CartService) Snapshot(sessionID string) *domain.Cart {
	st := s.state(sessionID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot
}

func (s *CartService) checkTotals(ctx context.Context, cart *domain.Cart) {
	if !cart.ConsistentTotals() {
		logger.WarnContext(ctx, "Cart totals drifted from subtotal-discount",
			"subtotal", cart.Subtotal,
			"discount", cart.DiscountAmount,
			"total", cart.Total,
		)
	}
}

func (st *cartState) begin() uint64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.nextSeq++
	return st.nextSeq
}

// apply installs the snapshot unless a newer response already landed, in
// which case the newer snapshot is returned and this one is dropped.
func (st *cartState) apply(ctx context.Context, seq uint64, cart *domain.Cart) *domain.Cart {
	st.mu.Lock()
	defer st.mu.Unlock()

	if seq < st.appliedSeq && st.snapshot != nil {
		logger.DebugContext(ctx, "Discarding stale cart response", "seq", seq, "applied_seq", st.appliedSeq)
		return st.snapshot
	}

	st.appliedSeq = seq
	st.snapshot = cart
	return cart
}
