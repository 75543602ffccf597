package domain

import (
	"fmt"
	"regexp"
	"strings"
)

type Customer struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	LastName    string `json:"last_name,omitempty"`
	Email       string `json:"email,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// UpdateCustomerRequest carries a partial profile edit. Nil fields are
// left untouched on the existing record.
type UpdateCustomerRequest struct {
	Name     *string `json:"name,omitempty"`
	LastName *string `json:"last_name,omitempty"`
	Email    *string `json:"email,omitempty"`
}

func (r *UpdateCustomerRequest) Normalize() {
	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		r.Name = &trimmed
	}
	if r.LastName != nil {
		trimmed := strings.TrimSpace(*r.LastName)
		r.LastName = &trimmed
	}
	if r.Email != nil {
		trimmed := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &trimmed
	}
}

func (r *UpdateCustomerRequest) Validate() error {
	if r.Name != nil && len(*r.Name) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrValidation)
	}
	if r.Email != nil && *r.Email != "" && !isValidEmailFormat(*r.Email) {
		return fmt.Errorf("%w: invalid email format", ErrValidation)
	}
	return nil
}

// ApplyTo merges the non-nil fields into an existing customer record.
func (r *UpdateCustomerRequest) ApplyTo(c *Customer) {
	if r.Name != nil {
		c.Name = *r.Name
	}
	if r.LastName != nil {
		c.LastName = *r.LastName
	}
	if r.Email != nil {
		c.Email = *r.Email
	}
}

func isValidEmailFormat(email string) bool {
	emailRegex := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailRegex.MatchString(email)
}
