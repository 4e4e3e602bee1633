package verification

import (
	"errors"
	"fmt"
)

// CodeLength is the number of digits in a voice verification code.
const CodeLength = 6

// ErrInvalidCode is returned when a verification code is not exactly six ASCII digits.
var ErrInvalidCode = errors.New("invalid verification code")

// Code is a validated verification code. The zero value is not a valid code,
// values are only produced by ValidateCode.
type Code struct {
	value string
}

// ValidateCode checks that raw is made of exactly CodeLength ASCII digits.
// Nothing is stripped or normalised: filler characters make the code invalid.
func ValidateCode(raw string) (Code, error) {
	if len(raw) != CodeLength {
		return Code{}, fmt.Errorf("%w: expected %d digits, got %d characters", ErrInvalidCode, CodeLength, len(raw))
	}

	for i := range len(raw) {
		if raw[i] < '0' || raw[i] > '9' {
			return Code{}, fmt.Errorf("%w: non digit at position %d", ErrInvalidCode, i)
		}
	}

	return Code{value: raw}, nil
}

// String returns the code as supplied.
func (c Code) String() string {
	return c.value
}

// Digits returns the numeric value of each digit in order.
func (c Code) Digits() []int {
	digits := make([]int, 0, len(c.value))
	for i := range len(c.value) {
		digits = append(digits, int(c.value[i]-'0'))
	}
	return digits
}

// IsZero reports whether c was never validated.
func (c Code) IsZero() bool {
	return c.value == ""
}
