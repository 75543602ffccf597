package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dukkan/storefront-gateway/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// Event subjects
const (
	// Session events
	SessionAuthenticated = "session.authenticated"
	SessionRevoked       = "session.revoked"
	CustomerRegistered   = "customer.registered"

	// Cart events
	CartMerged = "cart.merged"

	// Wishlist events
	WishlistCleared = "wishlist.cleared"

	// Checkout events
	CheckoutStarted = "checkout.started"
)

// Event payloads
type SessionAuthenticatedEvent struct {
	SessionID     string    `json:"session_id"`
	CustomerName  string    `json:"customer_name"`
	Phone         string    `json:"phone"`
	NewCustomer   bool      `json:"new_customer"`
	AuthedAt      time.Time `json:"authed_at"`
}

type SessionRevokedEvent struct {
	SessionID string    `json:"session_id"`
	Reason    string    `json:"reason"` // logout or unauthorized
	RevokedAt time.Time `json:"revoked_at"`
}

type CustomerRegisteredEvent struct {
	SessionID    string    `json:"session_id"`
	CustomerName string    `json:"customer_name"`
	Email        string    `json:"email,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

type CartMergedEvent struct {
	SessionID      string    `json:"session_id"`
	GuestCartToken string    `json:"guest_cart_token"`
	MergedAt       time.Time `json:"merged_at"`
}

type WishlistClearedEvent struct {
	SessionID string    `json:"session_id"`
	Count     int       `json:"count"`
	ClearedAt time.Time `json:"cleared_at"`
}

type CheckoutStartedEvent struct {
	SessionID string    `json:"session_id"`
	CartToken string    `json:"cart_token"`
	Total     float64   `json:"total"`
	Currency  string    `json:"currency"`
	StartedAt time.Time `json:"started_at"`
}

// NopBus satisfies EventBus when NATS is not configured (tests, local dev).
type NopBus struct{}

func (NopBus) Publish(context.Context, string, interface{}) error          { return nil }
func (NopBus) Subscribe(string, func(msg *Message)) error                  { return nil }
func (NopBus) QueueSubscribe(string, string, func(msg *Message)) error     { return nil }
func (NopBus) Close() error                                                { return nil }
