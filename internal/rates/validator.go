package rates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

var countryCodeRegex = regexp.MustCompile(`^[A-Z]{2}$`)

// IsValidCountryCode validates an ISO-3166 alpha-2 code shape.
func IsValidCountryCode(code string) bool {
	return countryCodeRegex.MatchString(code)
}

func (v *Validator) Validate(card *RateCard) error {
	if !IsValidCountryCode(card.HomeCountry) {
		return fmt.Errorf("home_country must be an ISO alpha-2 code")
	}

	for name, codes := range card.Classes {
		if name != string(ClassDomestic) && name != string(ClassInternational) {
			return fmt.Errorf("unknown shipment class: %s", name)
		}
		if len(codes) == 0 {
			return fmt.Errorf("shipment class %s has no countries", name)
		}
		for _, code := range codes {
			if !IsValidCountryCode(code) {
				return fmt.Errorf("shipment class %s has invalid country code: %s", name, code)
			}
		}
	}

	for _, class := range []Class{ClassDomestic, ClassInternational, ClassGlobal} {
		raw, ok := card.Fees[string(class)]
		if !ok {
			return fmt.Errorf("missing fee for shipment class %s", class)
		}
		fee, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("fee for shipment class %s is not a decimal: %w", class, err)
		}
		if fee.IsNegative() {
			return fmt.Errorf("fee for shipment class %s must be zero or positive", class)
		}
	}

	seenNames := make(map[string]string)
	for i, country := range card.Countries {
		if !IsValidCountryCode(country.Code) {
			return fmt.Errorf("country %d has invalid code: %s", i, country.Code)
		}
		for _, name := range country.Names {
			normalized := strings.ToLower(strings.TrimSpace(name))
			if normalized == "" {
				return fmt.Errorf("country %s has an empty name alias", country.Code)
			}
			if prev, ok := seenNames[normalized]; ok && prev != country.Code {
				return fmt.Errorf("country name %q maps to both %s and %s", name, prev, country.Code)
			}
			seenNames[normalized] = country.Code
		}
	}

	return nil
}
