// Package priceparse converts locale-variant price strings found on product
// pages into decimal values (C1).
package priceparse

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	currencyGlyphs = strings.NewReplacer(
		"$", "", "€", "", "£", "", "¥", "", "₹", "", "₩", "",
	)

	// firstNumericRun matches the first contiguous run of digits, commas,
	// and dots in a string.
	firstNumericRun = regexp.MustCompile(`[0-9][0-9,.]*`)

	minPrice = decimal.NewFromInt(1)
	maxPrice = decimal.NewFromInt(100000)
)

// Options controls interpretation ambiguity that the raw string alone can't
// resolve.
type Options struct {
	// CentsMode: pure numeric strings of >=5 digits with no separators are
	// interpreted as cents (divided by 100) rather than whole units. Used
	// for data-attribute prices that are conventionally integer cents.
	CentsMode bool
}

// Parse extracts a single non-negative decimal price from raw, using whole
// units for unseparated digit runs. It never panics on malformed input; it
// reports ok=false instead.
func Parse(raw string) (price decimal.Decimal, ok bool) {
	return ParseWithOptions(raw, Options{})
}

// ParseWithOptions is Parse with explicit interpretation options.
func ParseWithOptions(raw string, opts Options) (price decimal.Decimal, ok bool) {
	cleaned := strings.TrimSpace(currencyGlyphs.Replace(raw))
	cleaned = strings.TrimSpace(cleaned)

	match := firstNumericRun.FindString(cleaned)
	if match == "" {
		return decimal.Decimal{}, false
	}

	hasComma := strings.Contains(match, ",")
	hasDot := strings.Contains(match, ".")
	noSeparators := !hasComma && !hasDot

	var normalized string
	switch {
	case hasComma && hasDot:
		normalized = disambiguateBoth(match)
	case hasComma && !hasDot:
		normalized = disambiguateCommaOnly(match)
	case hasDot && !hasComma:
		// Only '.' present -> already the decimal separator; strip nothing.
		normalized = match
	default:
		normalized = match
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, false
	}

	if noSeparators && opts.CentsMode && len(match) >= 5 {
		d = d.Div(decimal.NewFromInt(100))
	}

	if d.LessThan(minPrice) || d.GreaterThan(maxPrice) {
		return decimal.Decimal{}, false
	}

	return d, true
}

// disambiguateBoth handles strings containing both ',' and '.': the
// rightmost of the two is the decimal separator, the other is a thousands
// separator to be stripped.
func disambiguateBoth(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot {
		// comma is decimal; dots are thousands separators
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		return s
	}
	// dot is decimal; commas are thousands separators
	return strings.ReplaceAll(s, ",", "")
}

// disambiguateCommaOnly handles a string with only ',' present: treated as
// the decimal separator when exactly two digits follow the last comma,
// otherwise as a thousands separator.
func disambiguateCommaOnly(s string) string {
	last := strings.LastIndex(s, ",")
	after := s[last+1:]
	if len(after) == 2 {
		whole := strings.ReplaceAll(s[:last], ",", "")
		return whole + "." + after
	}
	return strings.ReplaceAll(s, ",", "")
}
