package venipak

import (
	"strings"
	"unicode"
)

// Country dialing prefixes for destinations the carrier routes directly.
var dialingPrefixes = map[string]string{
	"LT": "+370",
	"LV": "+371",
	"EE": "+372",
	"PL": "+48",
	"FI": "+358",
}

// The carrier home country prefix backs unmapped destinations.
const defaultDialingPrefix = "+370"

// NormalizePhone converts a free-form phone number to an E.164-like form for
// the destination country. Already "+"-prefixed numbers pass through
// untouched, which makes the function idempotent.
func NormalizePhone(phone, countryCode string) string {
	cleaned := stripPhoneNoise(phone)
	if cleaned == "" {
		return ""
	}
	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}

	cleaned = strings.TrimPrefix(cleaned, "0")

	prefix, ok := dialingPrefixes[strings.ToUpper(countryCode)]
	if !ok {
		prefix = defaultDialingPrefix
	}
	return prefix + cleaned
}

// stripPhoneNoise keeps digits and a single leading plus sign.
func stripPhoneNoise(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePostalCode applies destination-specific postal code rules.
// Poland's system accepts digits only; everything else passes through.
func NormalizePostalCode(code, countryCode string) string {
	trimmed := strings.TrimSpace(code)
	if strings.ToUpper(countryCode) != "PL" {
		return trimmed
	}

	var b strings.Builder
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
