package authflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/mailer"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/config"
	"github.com/dukkan/storefront-gateway/pkg/events"
	"github.com/dukkan/storefront-gateway/pkg/logger"
)

// AuthAPI is the slice of the commerce client the flow controller needs.
type AuthAPI interface {
	InitiateAuth(ctx context.Context, phone domain.PhoneNumber) (string, error)
	VerifyOTP(ctx context.Context, otp, sessionToken string) (*domain.VerifyResult, error)
	ResendOTP(ctx context.Context, sessionToken string) error
	Register(ctx context.Context, profile domain.RegistrationRequest, sessionToken string) (*domain.AuthResult, error)
}

// SessionInstaller installs credentials and applies the cart-token
// continuity rule. Implemented by session.AuthService.
type SessionInstaller interface {
	SetAuth(ctx context.Context, sessionID, bearer string, customer domain.Customer)
	ReconcileCartToken(ctx context.Context, sessionID, serverIssued string) bool
}

// CartRefresher re-syncs and re-fetches the cart after auth transitions.
// Implemented by session.CartService.
type CartRefresher interface {
	SyncToken(ctx context.Context, sessionID string) string
	Fetch(ctx context.Context, sessionID string) (*domain.Cart, error)
}

// RateLimiter backstops the per-phone initiation guard. Implemented by
// the postgres rate-limit repository; fails open.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, requests int, window time.Duration) (bool, error)
}

// Result is the controller's answer to a step transition.
type Result struct {
	Status             string           `json:"status"` // otp_sent, authenticated, registration_required, registered
	Customer           *domain.Customer `json:"customer,omitempty"`
	GuestCartPreserved bool             `json:"guest_cart_preserved,omitempty"`
	Flow               *Status          `json:"flow,omitempty"`
}

// Controller drives the phone → otp → registration flow. All timing
// guards run against the injected clock and reject locally, before any
// network call is made.
type Controller struct {
	api     AuthAPI
	flows   FlowStore
	auth    SessionInstaller
	cart    CartRefresher
	limiter RateLimiter
	mailer  mailer.Service
	bus     events.Publisher
	clock   Clock
	cfg     config.AuthFlowConfig
}

func NewController(
	api AuthAPI,
	flows FlowStore,
	auth SessionInstaller,
	cart CartRefresher,
	limiter RateLimiter,
	mail mailer.Service,
	bus events.Publisher,
	clock Clock,
	cfg config.AuthFlowConfig,
) *Controller {
	return &Controller{
		api:     api,
		flows:   flows,
		auth:    auth,
		cart:    cart,
		limiter: limiter,
		mailer:  mail,
		bus:     bus,
		clock:   clock,
		cfg:     cfg,
	}
}

// Open starts a fresh flow for a browser session.
func (c *Controller) Open(ctx context.Context, sessionID string) (*Status, error) {
	flow := &Flow{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Step:      StepPhone,
	}
	if err := c.flows.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to open flow: %w", err)
	}

	status := flow.status(c.clock, c.cfg.MaxAttempts, c.cfg.OTPExpiry)
	return &status, nil
}

// SubmitPhone validates the number locally, asks the backend to send an
// OTP, and advances the flow to the otp step with a fresh 30s resend
// cooldown and a zeroed attempt counter. Submitting from the otp step is
// the "back to phone" path: the previous code, attempts and cooldowns
// are all discarded.
func (c *Controller) SubmitPhone(ctx context.Context, flowID, rawPhone string) (*Result, error) {
	flow, err := c.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Step == StepRegistration {
		return nil, fmt.Errorf("%w: expected phone step, flow is in %s", ErrWrongStep, flow.Step)
	}

	phone, err := domain.ParsePhone(rawPhone, c.cfg.DefaultRegion)
	if err != nil {
		return nil, err
	}

	key := "otp_initiate:" + phone.E164
	allowed, err := c.limiter.CheckRateLimit(ctx, key, 5, 10*time.Minute)
	if err != nil {
		logger.WarnContext(ctx, "Rate limit check failed, allowing request", "error", err)
	} else if !allowed {
		return nil, ErrRateLimited
	}

	upstreamToken, err := c.api.InitiateAuth(ctx, phone)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	flow.Step = StepOTP
	flow.Phone = phone
	flow.UpstreamToken = upstreamToken
	flow.Attempts = 0
	flow.OTPSentAt = now
	flow.ResendNotBefore = now.Add(c.cfg.ResendCooldown)
	flow.VerifyNotBefore = time.Time{}
	if err := c.flows.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	status := flow.status(c.clock, c.cfg.MaxAttempts, c.cfg.OTPExpiry)
	return &Result{Status: "otp_sent", Flow: &status}, nil
}

var otpFormat = regexp.MustCompile(`^\d{4,6}$`)

// VerifyCode submits an OTP. The expiry window, the attempt cap and any
// running cooldown all reject locally with zero network calls. A failed
// upstream check increments the attempt counter and applies the
// progressive 5s/10s/30s cooldown.
func (c *Controller) VerifyCode(ctx context.Context, flowID, code string) (*Result, error) {
	flow, err := c.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Step != StepOTP {
		return nil, fmt.Errorf("%w: expected otp step, flow is in %s", ErrWrongStep, flow.Step)
	}
	if !otpFormat.MatchString(code) {
		return nil, fmt.Errorf("%w: verification code must be 4 to 6 digits", domain.ErrValidation)
	}

	now := c.clock.Now()
	if now.Sub(flow.OTPSentAt) > c.cfg.OTPExpiry {
		return nil, ErrOTPExpired
	}
	if flow.Attempts >= c.cfg.MaxAttempts {
		return nil, ErrTooManyAttempts
	}
	if remaining := flow.VerifyNotBefore.Sub(now); remaining > 0 {
		return nil, &CooldownError{Kind: "verify", Remaining: remaining}
	}

	// Pick up a cart token another tab may have written before the
	// merge-relevant call goes out.
	c.cart.SyncToken(ctx, flow.SessionID)

	result, err := c.api.VerifyOTP(ctx, code, flow.UpstreamToken)
	if err != nil {
		// Only a rejection from the backend consumes an attempt and arms
		// the progressive lockout. Transport failures and 5xx surface
		// without touching the budget.
		var apiErr *upstream.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			flow.Attempts++
			flow.VerifyNotBefore = c.clock.Now().Add(domain.VerifyCooldownAfter(flow.Attempts))
			if saveErr := c.flows.Save(ctx, flow); saveErr != nil {
				logger.ErrorContext(ctx, "Failed to record verification attempt", "error", saveErr)
			}
		}
		return nil, err
	}

	switch result.Outcome {
	case domain.OutcomeRegistrationRequired:
		flow.Step = StepRegistration
		flow.UpstreamToken = result.SessionToken
		if err := c.flows.Save(ctx, flow); err != nil {
			return nil, fmt.Errorf("failed to save flow: %w", err)
		}
		status := flow.status(c.clock, c.cfg.MaxAttempts, c.cfg.OTPExpiry)
		return &Result{Status: "registration_required", Flow: &status}, nil

	case domain.OutcomeAuthenticated:
		preserved := c.complete(ctx, flow, domain.AuthResult{
			Token:     result.Token,
			Customer:  *result.Customer,
			CartToken: result.CartToken,
		}, false)
		return &Result{
			Status:             "authenticated",
			Customer:           result.Customer,
			GuestCartPreserved: preserved,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %s", upstream.ErrUnknownOutcome, result.Outcome)
	}
}

// Resend requests a fresh code. Blocked while the resend cooldown runs;
// on success the attempt counter, verify cooldown and expiry window all
// reset. An upstream 429 still starts the cooldown so the endpoint is
// not hammered.
func (c *Controller) Resend(ctx context.Context, flowID string) (*Result, error) {
	flow, err := c.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Step != StepOTP {
		return nil, fmt.Errorf("%w: expected otp step, flow is in %s", ErrWrongStep, flow.Step)
	}

	now := c.clock.Now()
	if remaining := flow.ResendNotBefore.Sub(now); remaining > 0 {
		return nil, &CooldownError{Kind: "resend", Remaining: remaining}
	}

	if err := c.api.ResendOTP(ctx, flow.UpstreamToken); err != nil {
		if upstream.IsRateLimited(err) {
			flow.ResendNotBefore = now.Add(c.cfg.ResendCooldown)
			if saveErr := c.flows.Save(ctx, flow); saveErr != nil {
				logger.ErrorContext(ctx, "Failed to save resend cooldown", "error", saveErr)
			}
		}
		return nil, err
	}

	flow.Attempts = 0
	flow.OTPSentAt = now
	flow.ResendNotBefore = now.Add(c.cfg.ResendCooldown)
	flow.VerifyNotBefore = time.Time{}
	if err := c.flows.Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	status := flow.status(c.clock, c.cfg.MaxAttempts, c.cfg.OTPExpiry)
	return &Result{Status: "otp_sent", Flow: &status}, nil
}

// Register completes a new customer's profile. On success the session is
// installed exactly as the direct-login path does it.
func (c *Controller) Register(ctx context.Context, flowID string, profile domain.RegistrationRequest) (*Result, error) {
	flow, err := c.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Step != StepRegistration {
		return nil, fmt.Errorf("%w: expected registration step, flow is in %s", ErrWrongStep, flow.Step)
	}

	profile.Normalize()
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	c.cart.SyncToken(ctx, flow.SessionID)

	result, err := c.api.Register(ctx, profile, flow.UpstreamToken)
	if err != nil {
		return nil, err
	}

	preserved := c.complete(ctx, flow, *result, true)
	return &Result{
		Status:             "registered",
		Customer:           &result.Customer,
		GuestCartPreserved: preserved,
	}, nil
}

// Close discards the flow and all of its timers from any step.
func (c *Controller) Close(ctx context.Context, flowID string) error {
	return c.flows.Delete(ctx, flowID)
}

// GetStatus reports the flow's step and remaining cooldowns.
func (c *Controller) GetStatus(ctx context.Context, flowID string) (*Status, error) {
	flow, err := c.flows.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	status := flow.status(c.clock, c.cfg.MaxAttempts, c.cfg.OTPExpiry)
	return &status, nil
}

// complete installs credentials, reconciles the cart token (guest token
// wins), forces a cart re-fetch and publishes the session event. Reports
// whether a guest cart token was preserved.
func (c *Controller) complete(ctx context.Context, flow *Flow, result domain.AuthResult, newCustomer bool) bool {
	c.auth.SetAuth(ctx, flow.SessionID, result.Token, result.Customer)
	preserved := c.auth.ReconcileCartToken(ctx, flow.SessionID, result.CartToken)

	if _, err := c.cart.Fetch(ctx, flow.SessionID); err != nil {
		logger.WarnContext(ctx, "Cart re-fetch after authentication failed", "error", err)
	}

	if err := c.bus.Publish(ctx, events.SessionAuthenticated, events.SessionAuthenticatedEvent{
		SessionID:    flow.SessionID,
		CustomerName: result.Customer.Name,
		Phone:        flow.Phone.E164,
		NewCustomer:  newCustomer,
		AuthedAt:     c.clock.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish session authenticated event", "error", err)
	}

	if newCustomer {
		if err := c.bus.Publish(ctx, events.CustomerRegistered, events.CustomerRegisteredEvent{
			SessionID:    flow.SessionID,
			CustomerName: result.Customer.Name,
			Email:        result.Customer.Email,
			RegisteredAt: c.clock.Now(),
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish customer registered event", "error", err)
		}
		if result.Customer.Email != "" {
			if err := c.mailer.SendWelcomeEmail(result.Customer.Email, result.Customer.Name); err != nil {
				logger.WarnContext(ctx, "Failed to send welcome email", "error", err)
			}
		}
	}

	if err := c.flows.Delete(ctx, flow.ID); err != nil {
		logger.WarnContext(ctx, "Failed to delete completed flow", "error", err)
	}

	return preserved
}
