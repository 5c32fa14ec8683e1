package shipping

import (
	"errors"
	"strings"
)

// PostalCodeLength is the number of digits in a complete CEP.
const PostalCodeLength = 8

// ErrInvalidPostalCode is returned for inputs that do not contain exactly eight digits.
var ErrInvalidPostalCode = errors.New("postal code must have 8 digits")

// DigitsOnly strips every non-digit rune from the input.
func DigitsOnly(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePostalCode accepts masked ("01310-100") or bare input and returns the eight digits.
func NormalizePostalCode(input string) (string, error) {
	digits := DigitsOnly(input)
	if len(digits) != PostalCodeLength {
		return "", ErrInvalidPostalCode
	}
	return digits, nil
}

// FormatPostalCode renders a normalised code with the customary mask.
func FormatPostalCode(digits string) string {
	if len(digits) != PostalCodeLength {
		return digits
	}
	return digits[:5] + "-" + digits[5:]
}
