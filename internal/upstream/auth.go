package upstream

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukkan/storefront-gateway/internal/domain"
)

// ErrUnknownOutcome marks a verify response whose type the gateway does
// not recognize. Treated as a hard failure, never a silent fallthrough.
var ErrUnknownOutcome = errors.New("unknown verification response type")

type initiateAuthRequest struct {
	Channel     string `json:"channel"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

type initiateAuthResponse struct {
	SessionToken string `json:"session_token"`
}

// InitiateAuth asks the backend to send an OTP and returns the flow's
// session token.
func (c *Client) InitiateAuth(ctx context.Context, phone domain.PhoneNumber) (string, error) {
	req := initiateAuthRequest{
		Channel:     domain.ChannelPhone,
		CountryCode: phone.CountryCode,
		Phone:       phone.National,
	}

	var resp initiateAuthResponse
	if err := c.mutate(ctx, "POST", "/auth/initiate", requestOptions{}, req, &resp); err != nil {
		return "", err
	}
	if resp.SessionToken == "" {
		return "", fmt.Errorf("auth initiate returned no session token")
	}
	return resp.SessionToken, nil
}

type verifyOTPRequest struct {
	OTP          string `json:"otp"`
	SessionToken string `json:"session_token"`
}

type verifyOTPResponse struct {
	Type                 string           `json:"type"`
	RequiresRegistration bool             `json:"requires_registration"`
	SessionToken         string           `json:"session_token"`
	Token                string           `json:"token"`
	Customer             *domain.Customer `json:"customer"`
	CartToken            string           `json:"cart_token"`
}

// VerifyOTP submits a code and decodes the backend's answer into the
// tagged VerifyResult union.
func (c *Client) VerifyOTP(ctx context.Context, otp, sessionToken string) (*domain.VerifyResult, error) {
	req := verifyOTPRequest{OTP: otp, SessionToken: sessionToken}

	var resp verifyOTPResponse
	if err := c.mutate(ctx, "POST", "/auth/verify", requestOptions{}, req, &resp); err != nil {
		return nil, err
	}

	switch resp.Type {
	case "new":
		if !resp.RequiresRegistration {
			return nil, fmt.Errorf("%w: type %q without requires_registration", ErrUnknownOutcome, resp.Type)
		}
		token := resp.SessionToken
		if token == "" {
			token = sessionToken
		}
		return &domain.VerifyResult{
			Outcome:      domain.OutcomeRegistrationRequired,
			SessionToken: token,
		}, nil
	case "authenticated":
		if resp.Token == "" || resp.Customer == nil {
			return nil, fmt.Errorf("%w: authenticated response missing token or customer", ErrUnknownOutcome)
		}
		return &domain.VerifyResult{
			Outcome:   domain.OutcomeAuthenticated,
			Token:     resp.Token,
			Customer:  resp.Customer,
			CartToken: resp.CartToken,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOutcome, resp.Type)
	}
}

type resendOTPRequest struct {
	SessionToken string `json:"session_token"`
}

// ResendOTP requests a fresh code. A 429 comes back as an APIError the
// flow controller treats as success-adjacent (cooldown still applies).
func (c *Client) ResendOTP(ctx context.Context, sessionToken string) error {
	return c.mutate(ctx, "POST", "/auth/resend", requestOptions{}, resendOTPRequest{SessionToken: sessionToken}, nil)
}

type registerRequest struct {
	Name         string `json:"name"`
	LastName     string `json:"last_name,omitempty"`
	Email        string `json:"email,omitempty"`
	SessionToken string `json:"session_token"`
}

type registerResponse struct {
	Token     string           `json:"token"`
	Customer  *domain.Customer `json:"customer"`
	CartToken string           `json:"cart_token"`
}

// Register completes a new customer's profile and returns the same
// credentials shape as the direct-login path.
func (c *Client) Register(ctx context.Context, profile domain.RegistrationRequest, sessionToken string) (*domain.AuthResult, error) {
	req := registerRequest{
		Name:         profile.Name,
		LastName:     profile.LastName,
		Email:        profile.Email,
		SessionToken: sessionToken,
	}

	var resp registerResponse
	if err := c.mutate(ctx, "POST", "/auth/register", requestOptions{}, req, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" || resp.Customer == nil {
		return nil, fmt.Errorf("registration response missing token or customer")
	}

	return &domain.AuthResult{
		Token:     resp.Token,
		Customer:  *resp.Customer,
		CartToken: resp.CartToken,
	}, nil
}
