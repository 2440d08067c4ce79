package protocol

import (
	"errors"
	"math"
	"strings"
	"unicode"
)

// MaxNameLength caps display names in runes
const MaxNameLength = 24

var ErrInvalidInput = errors.New("invalid input")

// ValidateInput rejects inputs the simulation cannot use. A non-finite
// angle is allowed through; the engine keeps the previous facing.
func ValidateInput(in InputMessage) error {
	if !finite(in.Mouse.X) || !finite(in.Mouse.Y) {
		return ErrInvalidInput
	}
	return nil
}

// SanitizeName trims whitespace, drops control characters and caps the
// length. An empty result means the server picks a default name.
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	n := 0
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		if n == MaxNameLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return strings.TrimSpace(b.String())
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
