package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrInvalidPhone = errors.New("invalid phone number")

// PhoneNumber is a validated international number split the way the
// commerce API expects it: calling code and national digits.
type PhoneNumber struct {
	CountryCode string `json:"country_code"` // "966", "973", ...
	National    string `json:"phone"`        // national digits only
	E164        string `json:"e164"`
}

// ParsePhone validates raw input in international format. defaultRegion
// is only consulted when the number lacks a leading +.
func ParsePhone(raw, defaultRegion string) (PhoneNumber, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PhoneNumber{}, fmt.Errorf("%w: empty", ErrInvalidPhone)
	}

	num, err := phonenumbers.Parse(raw, defaultRegion)
	if err != nil {
		return PhoneNumber{}, fmt.Errorf("%w: %v", ErrInvalidPhone, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return PhoneNumber{}, ErrInvalidPhone
	}

	return PhoneNumber{
		CountryCode: strconv.Itoa(int(num.GetCountryCode())),
		National:    phonenumbers.GetNationalSignificantNumber(num),
		E164:        phonenumbers.Format(num, phonenumbers.E164),
	}, nil
}
