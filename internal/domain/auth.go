package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation marks locally-rejected input so the transport layer can
// answer 400 without inspecting message text.
var ErrValidation = errors.New("validation")

// AuthSession is the authenticated identity held by a browser session:
// the upstream bearer token plus the customer it belongs to.
type AuthSession struct {
	Token    string   `json:"token"`
	Customer Customer `json:"customer"`
}

type RegistrationRequest struct {
	Name     string `json:"name"`
	LastName string `json:"last_name,omitempty"`
	Email    string `json:"email,omitempty"`
}

func (r *RegistrationRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *RegistrationRequest) Validate() error {
	if len(r.Name) < 2 {
		return fmt.Errorf("%w: name is required and must be at least 2 characters", ErrValidation)
	}
	if r.Email != "" && !isValidEmailFormat(r.Email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return nil
}

// VerifyOutcome discriminates the upstream's answer to an OTP check.
// Decoding rejects anything outside these two; a new backend response
// shape must fail loudly instead of falling through.
type VerifyOutcome int

const (
	OutcomeAuthenticated VerifyOutcome = iota
	OutcomeRegistrationRequired
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRegistrationRequired:
		return "registration_required"
	default:
		return "unknown"
	}
}

// VerifyResult is the decoded tagged union. SessionToken is set for the
// registration branch; Token/Customer/CartToken for the authenticated one.
type VerifyResult struct {
	Outcome      VerifyOutcome
	SessionToken string
	Token        string
	Customer     *Customer
	CartToken    string
}

// AuthResult is what both the direct-login and the registration paths
// hand back to the flow controller.
type AuthResult struct {
	Token     string
	Customer  Customer
	CartToken string
}

// ChannelPhone is the only auth channel the commerce API offers.
const ChannelPhone = "phone"

// VerifyCooldownAfter returns the progressive lockout applied after the
// n-th failed verification within one OTP session.
func VerifyCooldownAfter(attempts int) time.Duration {
	switch {
	case attempts <= 1:
		return 5 * time.Second
	case attempts == 2:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}
