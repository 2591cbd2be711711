// Package phone normalizes heterogeneous Argentine phone-number input into
// the canonical international mobile form used by every phone-based channel.
// Normalize is pure: it performs no I/O and is safe to run as a pre-flight
// gate before any paid provider call.
package phone

import (
	"fmt"
	"strings"

	"github.com/asoclub/notify-engine/internal/domain"
	"github.com/nyaruka/phonenumbers"
)

const (
	// CanonicalPrefix is the country code plus the mobile indicator that
	// every canonical number starts with.
	CanonicalPrefix = "+549"

	minNationalDigits = 10
	maxNationalDigits = 12
)

// decorations tolerated in raw input. Anything else besides digits and a
// single leading + is rejected.
const decorationChars = " \t-(). "

// Normalize parses raw input into canonical form: CanonicalPrefix followed
// by the national number (area code + subscriber, digits only).
//
// Recognized shapes, checked in order:
//  1. already canonical: 549...
//  2. country code without the mobile indicator: 54...
//  3. leading mobile indicator without country code: 9...
//  4. national leading-zero form: 0..., with an optional doubled zero used
//     as an international dial prefix: 0054...
//  5. bare local number: a 10-digit number is assumed to already include
//     its area code
//  6. any other residual digit string within the accepted digit range
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: phone number is required", domain.ErrValidation)
	}

	hadPlus := strings.HasPrefix(trimmed, "+")
	if hadPlus {
		trimmed = trimmed[1:]
	}

	digits, err := stripDecorations(trimmed)
	if err != nil {
		return "", err
	}
	if digits == "" {
		return "", fmt.Errorf("%w: phone number has no digits", domain.ErrValidation)
	}

	// Doubled zero is the international dial prefix; what follows is
	// country-coded input.
	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		hadPlus = true
	}

	national := nationalNumber(digits, hadPlus)
	if l := len(national); l < minNationalDigits || l > maxNationalDigits {
		return "", fmt.Errorf("%w: phone number must have %d to %d digits after the area code marker (got %d)",
			domain.ErrValidation, minNationalDigits, maxNationalDigits, l)
	}

	return CanonicalPrefix + national, nil
}

// nationalNumber strips country code, mobile indicator and national dial
// prefix, leaving area code + subscriber digits.
func nationalNumber(digits string, countryCoded bool) string {
	switch {
	case strings.HasPrefix(digits, "549") && (countryCoded || len(digits) > maxNationalDigits):
		return digits[3:]
	case strings.HasPrefix(digits, "54") && (countryCoded || len(digits) > maxNationalDigits):
		return digits[2:]
	case strings.HasPrefix(digits, "9") && len(digits) > minNationalDigits:
		return digits[1:]
	case strings.HasPrefix(digits, "0"):
		return digits[1:]
	default:
		return digits
	}
}

func stripDecorations(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(decorationChars, r):
			// formatting noise, dropped
		default:
			return "", fmt.Errorf("%w: phone number contains invalid character %q", domain.ErrValidation, r)
		}
	}
	return b.String(), nil
}

// FormatForDisplay renders a canonical number in a human-friendly
// international layout. Best effort only: it never affects validation and
// returns its input unchanged when the number cannot be parsed.
func FormatForDisplay(canonical string) string {
	parsed, err := phonenumbers.Parse(canonical, "AR")
	if err != nil {
		return canonical
	}
	return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
}
