package phone

import (
	"regexp"
	"strings"
)

// Normalization and validation for customer dial-out numbers.
//
// Rules:
// - All provider calls require E.164 numbers.
// - Freeform user input is normalized with a US bias (10-digit inputs get +1).
// - Normalize never errors; callers must reject output that fails IsValidE164.

var (
	nonDigits = regexp.MustCompile(`\D`)
	e164Shape = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
)

// Normalize converts freeform phone input to a canonical dial format.
// Unrecognizable input is passed through unchanged so the caller can reject it.
func Normalize(raw string) string {
	cleaned := nonDigits.ReplaceAllString(raw, "")

	if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
		return "+" + cleaned
	}
	if len(cleaned) == 10 {
		return "+1" + cleaned
	}
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		// A "+" with 10 remaining digits is treated as a US number missing
		// its country code.
		if len(cleaned) == 10 {
			return "+1" + cleaned
		}
		if len(cleaned) == 11 && strings.HasPrefix(cleaned, "1") {
			return raw
		}
	}
	return raw
}

// IsValidE164 reports whether number matches the E.164 shape:
// a leading + followed by 2 to 15 digits, first digit 1-9.
func IsValidE164(number string) bool {
	return e164Shape.MatchString(number)
}
