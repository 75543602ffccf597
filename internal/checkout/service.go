package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	stripesession "github.com/stripe/stripe-go/v76/checkout/session"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/repo/postgres"
	"github.com/dukkan/storefront-gateway/pkg/config"
	"github.com/dukkan/storefront-gateway/pkg/events"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

var ErrEmptyCart = errors.New("cart is empty")

// CartSource supplies the current cart for a browser session.
type CartSource interface {
	Fetch(ctx context.Context, sessionID string) (*domain.Cart, error)
}

// Session is the hand-off the browser needs to reach hosted payment.
type Session struct {
	ID  string `json:"checkout_id"`
	URL string `json:"redirect_url"`
}

// Service hands carts over to Stripe Checkout. Retries carrying the
// same Idempotency-Key get the original session back instead of a
// duplicate.
type Service struct {
	cart     CartSource
	idem     postgres.IdempotencyRepository
	bus      events.Publisher
	cfg      config.StripeConfig
	currency string
}

func NewService(cart CartSource, idem postgres.IdempotencyRepository, bus events.Publisher, cfg config.StripeConfig, currency string) *Service {
	stripe.Key = cfg.SecretKey
	return &Service{cart: cart, idem: idem, bus: bus, cfg: cfg, currency: strings.ToLower(currency)}
}

func (s *Service) Start(ctx context.Context, sessionID, cartToken, idempotencyKey string) (*Session, error) {
	if idempotencyKey != "" {
		existingID, err := s.idem.CheckOrCreateIdempotency(ctx, idempotencyKey, "")
		if err != nil {
			logger.WarnContext(ctx, "Idempotency lookup failed, proceeding", "error", err)
		} else if existingID != "" {
			existing, err := stripesession.Get(existingID, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to load existing checkout session: %w", err)
			}
			return &Session{ID: existing.ID, URL: existing.URL}, nil
		}
	}

	cart, err := s.cart.Fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(cart.Items))
	for _, item := range cart.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(toMinorUnits(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(sessionID),
	}
	if cartToken != "" {
		params.AddMetadata("cart_token", cartToken)
	}

	created, err := stripesession.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if idempotencyKey != "" {
		if _, err := s.idem.CheckOrCreateIdempotency(ctx, idempotencyKey, created.ID); err != nil {
			logger.WarnContext(ctx, "Failed to record idempotency key", "error", err)
		}
	}

	if err := s.bus.Publish(ctx, events.CheckoutStarted, events.CheckoutStartedEvent{
		SessionID: sessionID,
		CartToken: cartToken,
		Total:     cart.Total,
		Currency:  s.currency,
		StartedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish checkout started event", "error", err)
	}

	return &Session{ID: created.ID, URL: created.URL}, nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
