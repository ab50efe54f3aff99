// Package phone canonicalizes Kenyan phone numbers and resolves mobile
// carriers from number prefixes. All functions are pure; validation never
// touches the ledger.
package phone

import "strings"

const countryCode = "+254"

// Normalize converts a raw phone input into the +254XXXXXXXXX canonical form.
// Inputs that match none of the known shapes are returned unchanged and will
// fail Validate downstream.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(p, "0") && len(p) == 10:
		return countryCode + p[1:]
	case strings.HasPrefix(p, "254") && len(p) == 12:
		return "+" + p
	case strings.HasPrefix(p, countryCode):
		return p
	}
	return p
}

// Validate reports whether the phone is in canonical form: +254 followed by
// exactly 9 digits.
func Validate(p string) bool {
	if len(p) != 13 || !strings.HasPrefix(p, countryCode) {
		return false
	}
	for _, r := range p[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Digits strips everything except ASCII digits. Used to clean amount and
// phone inputs arriving from USSD clients that pad with whitespace.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}
