// Package numparse converts spreadsheet and user-entered numeric text into
// float64 values. Inputs arrive with mixed locale conventions (comma or dot
// decimals, thousands separators, currency symbols); the parser normalizes
// them without ever panicking.
package numparse

import (
	"math"
	"strconv"
	"strings"
)

// Parse interprets s as a locale-agnostic decimal number. The boolean result
// reports whether a finite value could be extracted.
func Parse(s string) (float64, bool) {
	cleaned := stripNonNumeric(s)
	if cleaned == "" {
		return 0, false
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		// The separator appearing later in the string is the decimal point;
		// the other is a thousands separator.
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case hasComma:
		if isDecimalComma(cleaned) {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Value extracts a float from a value of unknown shape: already-numeric
// types pass through, strings go through Parse, anything else is rejected.
func Value(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return Value(float64(n))
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		return Parse(n)
	default:
		return 0, false
	}
}

// stripNonNumeric keeps only digits, comma, dot and minus so currency
// symbols and whitespace never reach the float parser.
func stripNonNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isDecimalComma reports whether a lone comma acts as the decimal point:
// it must be the only comma and be followed by one to three digits.
func isDecimalComma(s string) bool {
	if strings.Count(s, ",") != 1 {
		return false
	}
	tail := s[strings.Index(s, ",")+1:]
	if len(tail) < 1 || len(tail) > 3 {
		return false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
