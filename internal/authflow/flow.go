package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

type Step string

const (
	StepPhone        Step = "phone"
	StepOTP          Step = "otp"
	StepRegistration Step = "registration"
)

var (
	ErrFlowNotFound    = errors.New("authentication flow not found")
	ErrWrongStep       = errors.New("operation not valid in current step")
	ErrOTPExpired      = errors.New("verification code has expired, request a new one")
	ErrTooManyAttempts = errors.New("too many failed attempts, request a new code")
	ErrRateLimited     = errors.New("too many verification requests, try again later")
)

// CooldownError reports a guard that rejected an operation because a
// timed lockout is still running.
type CooldownError struct {
	Kind      string // "verify" or "resend"
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s cooldown active, wait %d seconds", e.Kind, int(e.Remaining.Seconds()+0.999))
}

// Flow is one modal lifecycle's worth of authentication state, keyed by
// flow ID and bound to a browser session.
type Flow struct {
	ID            string             `json:"id"`
	SessionID     string             `json:"session_id"`
	Step          Step               `json:"step"`
	Phone         domain.PhoneNumber `json:"phone"`
	UpstreamToken string             `json:"upstream_token"`

	Attempts        int       `json:"attempts"`
	OTPSentAt       time.Time `json:"otp_sent_at"`
	ResendNotBefore time.Time `json:"resend_not_before"`
	VerifyNotBefore time.Time `json:"verify_not_before"`
}

// Status is the client-facing view of a flow, with cooldowns rendered as
// remaining seconds against the injected clock.
type Status struct {
	FlowID         string `json:"flow_id"`
	Step           Step   `json:"step"`
	Phone          string `json:"phone,omitempty"`
	AttemptsLeft   int    `json:"attempts_left"`
	ResendCooldown int    `json:"resend_cooldown_seconds"`
	VerifyCooldown int    `json:"verify_cooldown_seconds"`
	OTPExpiresIn   int    `json:"otp_expires_in_seconds"`
}

func (f *Flow) status(clock Clock, maxAttempts int, otpExpiry time.Duration) Status {
	now := clock.Now()
	st := Status{
		FlowID:       f.ID,
		Step:         f.Step,
		Phone:        f.Phone.E164,
		AttemptsLeft: maxAttempts - f.Attempts,
	}
	if st.AttemptsLeft < 0 {
		st.AttemptsLeft = 0
	}
	if remaining := f.ResendNotBefore.Sub(now); remaining > 0 {
		st.ResendCooldown = int(remaining.Seconds() + 0.999)
	}
	if remaining := f.VerifyNotBefore.Sub(now); remaining > 0 {
		st.VerifyCooldown = int(remaining.Seconds() + 0.999)
	}
	if f.Step == StepOTP {
		if remaining := f.OTPSentAt.Add(otpExpiry).Sub(now); remaining > 0 {
			st.OTPExpiresIn = int(remaining.Seconds())
		}
	}
	return st
}

// FlowStore persists flows for the duration of a modal lifecycle.
type FlowStore interface {
	Get(ctx context.Context, flowID string) (*Flow, error)
	Save(ctx context.Context, flow *Flow) error
	Delete(ctx context.Context, flowID string) error
}
