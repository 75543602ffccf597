package authflow_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dukkan/storefront-gateway/internal/authflow"
	"github.com/dukkan/storefront-gateway/internal/domain"
	"github.com/dukkan/storefront-gateway/internal/upstream"
	"github.com/dukkan/storefront-gateway/pkg/config"
	"github.com/dukkan/storefront-gateway/pkg/events"
)

// ---------- Mocks ----------

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type mockAuthAPI struct {
	initiateCalls int
	verifyCalls   int
	resendCalls   int
	registerCalls int

	initiateToken string
	initiateErr   error
	verifyResult  *domain.VerifyResult
	verifyErr     error
	resendErr     error
	registerRes   *domain.AuthResult
	registerErr   error
}

func (m *mockAuthAPI) InitiateAuth(_ context.Context, _ domain.PhoneNumber) (string, error) {
	m.initiateCalls++
	return m.initiateToken, m.initiateErr
}

func (m *mockAuthAPI) VerifyOTP(_ context.Context, _, _ string) (*domain.VerifyResult, error) {
	m.verifyCalls++
	return m.verifyResult, m.verifyErr
}

func (m *mockAuthAPI) ResendOTP(_ context.Context, _ string) error {
	m.resendCalls++
	return m.resendErr
}

func (m *mockAuthAPI) Register(_ context.Context, _ domain.RegistrationRequest, _ string) (*domain.AuthResult, error) {
	m.registerCalls++
	return m.registerRes, m.registerErr
}

type mockInstaller struct {
	setAuthCalls   int
	lastBearer     string
	lastCustomer   domain.Customer
	reconcileCalls int
	lastIssued     string
	preserveGuest  bool
}

func (m *mockInstaller) SetAuth(_ context.Context, _, bearer string, customer domain.Customer) {
	m.setAuthCalls++
	m.lastBearer = bearer
	m.lastCustomer = customer
}

func (m *mockInstaller) ReconcileCartToken(_ context.Context, _, serverIssued string) bool {
	m.reconcileCalls++
	m.lastIssued = serverIssued
	return m.preserveGuest
}

type mockCart struct {
	syncCalls  int
	fetchCalls int
}

func (m *mockCart) SyncToken(_ context.Context, _ string) string {
	m.syncCalls++
	return ""
}

func (m *mockCart) Fetch(_ context.Context, _ string) (*domain.Cart, error) {
	m.fetchCalls++
	return &domain.Cart{}, nil
}

type mockLimiter struct {
	allowed bool
	err     error
}

func (m *mockLimiter) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return m.allowed, m.err
}

type mockMailer struct {
	sendCalls int
	lastTo    string
	sendErr   error
}

func (m *mockMailer) SendWelcomeEmail(toEmail, _ string) error {
	m.sendCalls++
	m.lastTo = toEmail
	return m.sendErr
}

// ---------- Fixtures ----------

func testConfig() config.AuthFlowConfig {
	return config.AuthFlowConfig{
		OTPExpiry:      5 * time.Minute,
		ResendCooldown: 30 * time.Second,
		MaxAttempts:    3,
		FlowTTL:        15 * time.Minute,
		DefaultRegion:  "SA",
	}
}

type fixture struct {
	ctl       *authflow.Controller
	api       *mockAuthAPI
	installer *mockInstaller
	cart      *mockCart
	mail      *mockMailer
	clock     *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := &mockAuthAPI{initiateToken: "upstream-token-1"}
	installer := &mockInstaller{}
	cart := &mockCart{}
	mail := &mockMailer{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	ctl := authflow.NewController(
		api,
		authflow.NewMemoryFlowStore(),
		installer,
		cart,
		&mockLimiter{allowed: true},
		mail,
		events.NopBus{},
		clock,
		testConfig(),
	)
	return &fixture{ctl: ctl, api: api, installer: installer, cart: cart, mail: mail, clock: clock}
}

// openAtOTP walks a fresh flow to the otp step.
func (f *fixture) openAtOTP(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	status, err := f.ctl.Open(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if status.Step != authflow.StepPhone {
		t.Fatalf("expected phone step, got %s", status.Step)
	}

	result, err := f.ctl.SubmitPhone(ctx, status.FlowID, "+966501234567")
	if err != nil {
		t.Fatalf("SubmitPhone: %v", err)
	}
	if result.Flow.Step != authflow.StepOTP {
		t.Fatalf("expected otp step, got %s", result.Flow.Step)
	}
	return status.FlowID
}

// ---------- Tests ----------

func TestSubmitPhoneRejectsInvalidNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, _ := f.ctl.Open(ctx, "sess-1")
	_, err := f.ctl.SubmitPhone(ctx, status.FlowID, "not-a-phone")
	if !errors.Is(err, domain.ErrInvalidPhone) {
		t.Fatalf("expected ErrInvalidPhone, got %v", err)
	}
	if f.api.initiateCalls != 0 {
		t.Fatalf("invalid phone must not reach the backend, got %d calls", f.api.initiateCalls)
	}
}

func TestSubmitPhoneStartsResendCooldown(t *testing.T) {
	f := newFixture(t)
	flowID := f.openAtOTP(t)

	status, err := f.ctl.GetStatus(context.Background(), flowID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.ResendCooldown != 30 {
		t.Fatalf("expected 30s resend cooldown, got %d", status.ResendCooldown)
	}
	if status.AttemptsLeft != 3 {
		t.Fatalf("expected 3 attempts left, got %d", status.AttemptsLeft)
	}
}

func TestVerifyAuthenticatedInstallsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.api.verifyResult = &domain.VerifyResult{
		Outcome:   domain.OutcomeAuthenticated,
		Token:     "bearer-1",
		Customer:  &domain.Customer{ID: 7, Name: "Sara"},
		CartToken: "cart-server",
	}

	result, err := f.ctl.VerifyCode(ctx, flowID, "1234")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if result.Status != "authenticated" {
		t.Fatalf("expected authenticated, got %s", result.Status)
	}
	if f.installer.setAuthCalls != 1 || f.installer.lastBearer != "bearer-1" {
		t.Fatalf("SetAuth not invoked with bearer: calls=%d bearer=%q", f.installer.setAuthCalls, f.installer.lastBearer)
	}
	if f.installer.lastIssued != "cart-server" {
		t.Fatalf("reconcile got %q, want cart-server", f.installer.lastIssued)
	}
	if f.cart.syncCalls == 0 || f.cart.fetchCalls != 1 {
		t.Fatalf("expected token sync and one cart re-fetch, got sync=%d fetch=%d", f.cart.syncCalls, f.cart.fetchCalls)
	}

	// Completed flows are gone.
	if _, err := f.ctl.GetStatus(ctx, flowID); !errors.Is(err, authflow.ErrFlowNotFound) {
		t.Fatalf("expected ErrFlowNotFound after completion, got %v", err)
	}
}

func TestVerifyGuestCartPreserved(t *testing.T) {
	f := newFixture(t)
	flowID := f.openAtOTP(t)

	f.installer.preserveGuest = true
	f.api.verifyResult = &domain.VerifyResult{
		Outcome:   domain.OutcomeAuthenticated,
		Token:     "bearer-1",
		Customer:  &domain.Customer{Name: "Sara"},
		CartToken: "cart-server",
	}

	result, err := f.ctl.VerifyCode(context.Background(), flowID, "1234")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if !result.GuestCartPreserved {
		t.Fatal("expected guest cart to be preserved")
	}
}

func TestVerifyRegistrationRequired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.api.verifyResult = &domain.VerifyResult{
		Outcome:      domain.OutcomeRegistrationRequired,
		SessionToken: "upstream-token-2",
	}

	result, err := f.ctl.VerifyCode(ctx, flowID, "1234")
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if result.Status != "registration_required" {
		t.Fatalf("expected registration_required, got %s", result.Status)
	}
	if result.Flow.Step != authflow.StepRegistration {
		t.Fatalf("expected registration step, got %s", result.Flow.Step)
	}
	if f.installer.setAuthCalls != 0 {
		t.Fatal("no session must be installed before registration completes")
	}
}

func TestVerifyFailuresApplyProgressiveCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.api.verifyErr = &upstream.APIError{Status: http.StatusBadRequest, Message: "wrong code"}

	// First failure: upstream error surfaces verbatim, 5s lockout follows.
	_, err := f.ctl.VerifyCode(ctx, flowID, "0000")
	var apiErr *upstream.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "wrong code" {
		t.Fatalf("expected upstream error verbatim, got %v", err)
	}
	if f.api.verifyCalls != 1 {
		t.Fatalf("expected 1 verify call, got %d", f.api.verifyCalls)
	}

	// Immediate retry is blocked locally.
	_, err = f.ctl.VerifyCode(ctx, flowID, "0000")
	var cooldown *authflow.CooldownError
	if !errors.As(err, &cooldown) || cooldown.Kind != "verify" {
		t.Fatalf("expected verify cooldown, got %v", err)
	}
	if f.api.verifyCalls != 1 {
		t.Fatalf("cooldown rejection must not hit the backend, got %d calls", f.api.verifyCalls)
	}

	// Second failure after the 5s window: lockout grows to 10s.
	f.clock.advance(5 * time.Second)
	_, _ = f.ctl.VerifyCode(ctx, flowID, "0000")
	f.clock.advance(6 * time.Second)
	if _, err := f.ctl.VerifyCode(ctx, flowID, "0000"); err == nil {
		t.Fatal("expected cooldown still active at 6s of a 10s lockout")
	}
	if f.api.verifyCalls != 2 {
		t.Fatalf("expected 2 verify calls, got %d", f.api.verifyCalls)
	}

	// Third failure exhausts the attempt budget.
	f.clock.advance(5 * time.Second)
	_, _ = f.ctl.VerifyCode(ctx, flowID, "0000")
	if f.api.verifyCalls != 3 {
		t.Fatalf("expected 3 verify calls, got %d", f.api.verifyCalls)
	}

	// Fourth attempt is rejected locally even after every cooldown passes.
	f.clock.advance(time.Minute)
	_, err = f.ctl.VerifyCode(ctx, flowID, "0000")
	if !errors.Is(err, authflow.ErrTooManyAttempts) {
		t.Fatalf("expected ErrTooManyAttempts, got %v", err)
	}
	if f.api.verifyCalls != 3 {
		t.Fatalf("attempt cap must be enforced without a network call, got %d calls", f.api.verifyCalls)
	}
}

func TestVerifyBackendFailureKeepsAttemptBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	// A 5xx from the backend is not a wrong code.
	f.api.verifyErr = &upstream.APIError{Status: http.StatusBadGateway, Message: "upstream timeout"}
	if _, err := f.ctl.VerifyCode(ctx, flowID, "1234"); err == nil {
		t.Fatal("expected upstream error")
	}

	status, err := f.ctl.GetStatus(ctx, flowID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.AttemptsLeft != 3 {
		t.Fatalf("backend failure must not consume an attempt, got %d left", status.AttemptsLeft)
	}
	if status.VerifyCooldown != 0 {
		t.Fatalf("backend failure must not arm a lockout, got %ds", status.VerifyCooldown)
	}

	// An immediate retry goes straight back to the backend.
	f.api.verifyErr = errors.New("connection refused")
	if _, err := f.ctl.VerifyCode(ctx, flowID, "1234"); err == nil {
		t.Fatal("expected transport error")
	}
	if f.api.verifyCalls != 2 {
		t.Fatalf("retry after backend failure must reach the backend, got %d calls", f.api.verifyCalls)
	}

	// Once the backend answers with a rejection, the budget applies again.
	f.api.verifyErr = &upstream.APIError{Status: http.StatusBadRequest, Message: "wrong code"}
	_, _ = f.ctl.VerifyCode(ctx, flowID, "0000")
	status, _ = f.ctl.GetStatus(ctx, flowID)
	if status.AttemptsLeft != 2 {
		t.Fatalf("rejection must consume an attempt, got %d left", status.AttemptsLeft)
	}
}

func TestVerifyRejectsExpiredCode(t *testing.T) {
	f := newFixture(t)
	flowID := f.openAtOTP(t)

	f.clock.advance(5*time.Minute + time.Second)
	_, err := f.ctl.VerifyCode(context.Background(), flowID, "1234")
	if !errors.Is(err, authflow.ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if f.api.verifyCalls != 0 {
		t.Fatalf("expired code must be rejected locally, got %d calls", f.api.verifyCalls)
	}
}

func TestVerifyRejectsMalformedCode(t *testing.T) {
	f := newFixture(t)
	flowID := f.openAtOTP(t)

	_, err := f.ctl.VerifyCode(context.Background(), flowID, "12ab")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.api.verifyCalls != 0 {
		t.Fatal("malformed code must not reach the backend")
	}
}

func TestResendCooldownAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	// The cooldown armed by SubmitPhone blocks an immediate resend.
	_, err := f.ctl.Resend(ctx, flowID)
	var cooldown *authflow.CooldownError
	if !errors.As(err, &cooldown) || cooldown.Kind != "resend" {
		t.Fatalf("expected resend cooldown, got %v", err)
	}
	if f.api.resendCalls != 0 {
		t.Fatal("cooldown rejection must not hit the backend")
	}

	// Burn an attempt, then resend after the window: counter resets.
	f.api.verifyErr = &upstream.APIError{Status: http.StatusBadRequest, Message: "wrong code"}
	_, _ = f.ctl.VerifyCode(ctx, flowID, "0000")

	f.clock.advance(31 * time.Second)
	result, err := f.ctl.Resend(ctx, flowID)
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if result.Flow.AttemptsLeft != 3 {
		t.Fatalf("resend must reset attempts, got %d left", result.Flow.AttemptsLeft)
	}
	if result.Flow.ResendCooldown != 30 {
		t.Fatalf("expected fresh 30s cooldown, got %d", result.Flow.ResendCooldown)
	}
}

func TestResendRateLimitedStillArmsCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.clock.advance(31 * time.Second)
	f.api.resendErr = &upstream.APIError{Status: http.StatusTooManyRequests, Message: "slow down"}

	if _, err := f.ctl.Resend(ctx, flowID); err == nil {
		t.Fatal("expected upstream rate limit error")
	}

	// The 429 armed the cooldown, so the next resend is rejected locally.
	_, err := f.ctl.Resend(ctx, flowID)
	var cooldown *authflow.CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected cooldown after upstream 429, got %v", err)
	}
	if f.api.resendCalls != 1 {
		t.Fatalf("expected exactly 1 resend call, got %d", f.api.resendCalls)
	}
}

func TestRegisterCompletesAndSendsWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.api.verifyResult = &domain.VerifyResult{
		Outcome:      domain.OutcomeRegistrationRequired,
		SessionToken: "upstream-token-2",
	}
	if _, err := f.ctl.VerifyCode(ctx, flowID, "1234"); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}

	f.api.registerRes = &domain.AuthResult{
		Token:     "bearer-new",
		Customer:  domain.Customer{ID: 9, Name: "Sara", Email: "sara@example.com"},
		CartToken: "cart-server",
	}

	result, err := f.ctl.Register(ctx, flowID, domain.RegistrationRequest{Name: "Sara", Email: "sara@example.com"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Status != "registered" {
		t.Fatalf("expected registered, got %s", result.Status)
	}
	if f.installer.setAuthCalls != 1 || f.installer.lastBearer != "bearer-new" {
		t.Fatalf("session not installed: calls=%d bearer=%q", f.installer.setAuthCalls, f.installer.lastBearer)
	}
	if f.mail.sendCalls != 1 || f.mail.lastTo != "sara@example.com" {
		t.Fatalf("welcome email not sent: calls=%d to=%q", f.mail.sendCalls, f.mail.lastTo)
	}
	if _, err := f.ctl.GetStatus(ctx, flowID); !errors.Is(err, authflow.ErrFlowNotFound) {
		t.Fatalf("expected flow deleted after registration, got %v", err)
	}
}

func TestRegisterValidatesProfileLocally(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.api.verifyResult = &domain.VerifyResult{
		Outcome:      domain.OutcomeRegistrationRequired,
		SessionToken: "upstream-token-2",
	}
	if _, err := f.ctl.VerifyCode(ctx, flowID, "1234"); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}

	_, err := f.ctl.Register(ctx, flowID, domain.RegistrationRequest{Name: "S"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f.api.registerCalls != 0 {
		t.Fatal("invalid profile must not reach the backend")
	}
}

func TestRegisterWithoutEmailSkipsWelcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	f.api.verifyResult = &domain.VerifyResult{
		Outcome:      domain.OutcomeRegistrationRequired,
		SessionToken: "upstream-token-2",
	}
	if _, err := f.ctl.VerifyCode(ctx, flowID, "1234"); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}

	f.api.registerRes = &domain.AuthResult{
		Token:    "bearer-new",
		Customer: domain.Customer{Name: "Sara"},
	}
	if _, err := f.ctl.Register(ctx, flowID, domain.RegistrationRequest{Name: "Sara"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if f.mail.sendCalls != 0 {
		t.Fatal("no welcome email expected without an address")
	}
}

func TestWrongStepRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	status, _ := f.ctl.Open(ctx, "sess-1")

	if _, err := f.ctl.VerifyCode(ctx, status.FlowID, "1234"); !errors.Is(err, authflow.ErrWrongStep) {
		t.Fatalf("verify on phone step: expected ErrWrongStep, got %v", err)
	}
	if _, err := f.ctl.Resend(ctx, status.FlowID); !errors.Is(err, authflow.ErrWrongStep) {
		t.Fatalf("resend on phone step: expected ErrWrongStep, got %v", err)
	}
	if _, err := f.ctl.Register(ctx, status.FlowID, domain.RegistrationRequest{Name: "Sara"}); !errors.Is(err, authflow.ErrWrongStep) {
		t.Fatalf("register on phone step: expected ErrWrongStep, got %v", err)
	}
}

func TestBackToPhoneResetsCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	// Burn an attempt on the first number.
	f.api.verifyErr = &upstream.APIError{Status: http.StatusBadRequest, Message: "wrong code"}
	_, _ = f.ctl.VerifyCode(ctx, flowID, "0000")

	// Going back and submitting a different number starts over.
	result, err := f.ctl.SubmitPhone(ctx, flowID, "+966509876543")
	if err != nil {
		t.Fatalf("SubmitPhone from otp step: %v", err)
	}
	if result.Flow.AttemptsLeft != 3 {
		t.Fatalf("re-submission must reset attempts, got %d left", result.Flow.AttemptsLeft)
	}
	if result.Flow.Phone != "+966509876543" {
		t.Fatalf("flow still holds the old number: %s", result.Flow.Phone)
	}
}

func TestCloseDiscardsFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	flowID := f.openAtOTP(t)

	if err := f.ctl.Close(ctx, flowID); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.ctl.GetStatus(ctx, flowID); !errors.Is(err, authflow.ErrFlowNotFound) {
		t.Fatalf("expected ErrFlowNotFound after close, got %v", err)
	}
}

func TestRateLimitedInitiation(t *testing.T) {
	api := &mockAuthAPI{initiateToken: "tok"}
	ctl := authflow.NewController(
		api,
		authflow.NewMemoryFlowStore(),
		&mockInstaller{},
		&mockCart{},
		&mockLimiter{allowed: false},
		&mockMailer{},
		events.NopBus{},
		&fakeClock{now: time.Now()},
		testConfig(),
	)
	ctx := context.Background()

	status, _ := ctl.Open(ctx, "sess-1")
	_, err := ctl.SubmitPhone(ctx, status.FlowID, "+966501234567")
	if !errors.Is(err, authflow.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if api.initiateCalls != 0 {
		t.Fatal("rate-limited initiation must not reach the backend")
	}
}
