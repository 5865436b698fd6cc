package fixedwidth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNotNumeric is returned when an amount window holds something other than digits.
var ErrNotNumeric = errors.New("not numeric")

// StripZeros removes every leading '0'. An all-zero value becomes "".
func StripZeros(s string) string {
	return strings.TrimLeft(s, "0")
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseAmount parses a digit window. Surrounding blanks and leading zeros
// are dropped first and an empty result is 0.
func ParseAmount(s string) (int64, error) {
	s = StripZeros(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	if !IsDigits(s) {
		return 0, fmt.Errorf("%q: %w", s, ErrNotNumeric)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return v, nil
}

// MaxDigits is the longest digit string that always fits an int64.
const MaxDigits = 18

// ParseAmountTail is ParseAmount for digit strings of any length. Values
// too large for an int64 keep their last MaxDigits digits, which is more
// than any amount window holds.
func ParseAmountTail(s string) (int64, error) {
	v, err := ParseAmount(s)
	if !errors.Is(err, strconv.ErrRange) {
		return v, err
	}
	s = StripZeros(strings.TrimSpace(s))
	return ParseAmount(s[len(s)-MaxDigits:])
}

// PadDigits left-pads a digit string with zeros to width. Longer strings
// keep their last width digits.
func PadDigits(s string, width int) string {
	if len(s) > width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

// FormatAmount renders v with PadDigits. Negative values render as zero.
func FormatAmount(v int64, width int) string {
	if v < 0 {
		v = 0
	}
	return PadDigits(strconv.FormatInt(v, 10), width)
}

// Overlay writes value over the window of f, padding or cutting value on the
// right to the window width. It reports false, leaving line untouched, when
// the line does not reach the end of the window.
func Overlay(line string, f FieldSpec, value string) (string, bool) {
	if Len(line) < f.End {
		return line, false
	}
	w := f.Width()
	v := []rune(value)
	if len(v) > w {
		v = v[:w]
	}
	for len(v) < w {
		v = append(v, ' ')
	}
	r := []rune(line)
	copy(r[f.Start:f.End], v)
	return string(r), true
}

// RewriteAmount writes v into the amount window of line using FormatAmount.
func RewriteAmount(line string, f FieldSpec, v int64) (string, bool) {
	return Overlay(line, f, FormatAmount(v, f.Width()))
}
