package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeAmount converts a raw amount field into a decimal. Currency
// symbols, thousands separators and whitespace are stripped before parsing;
// anything left outside [0-9.-] is discarded. An empty or non-numeric
// remainder is an error rather than zero, so garbage input surfaces as a
// row error instead of being silently filtered by the amount<=0 skip.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}

	replacer := strings.NewReplacer(",", "", "₩", "", "$", "", " ", "", "\t", "")
	cleaned = replacer.Replace(cleaned)

	var b strings.Builder
	for _, r := range cleaned {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned = b.String()

	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Zero, fmt.Errorf("amount '%s' has no numeric content", raw)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount '%s': %w", raw, err)
	}

	return amount, nil
}

// transactionDateLayouts are tried in order against the leading characters
// of the raw date field. Bank exports append times in assorted shapes, so
// only the date prefix is parsed.
var transactionDateLayouts = []struct {
	layout string
	width  int
}{
	{"2006-01-02", 10},
	{"2006.01.02", 10},
	{"2006/01/02", 10},
	{"06-01-02", 8},
}

// ParseTransactionDate parses the date prefix of a raw bank statement date
// field. Two-digit years are assumed to be 2000 or later. When no layout
// matches, now is returned; callers log this fallback since it can hide a
// wrong transaction date.
func ParseTransactionDate(raw string, now time.Time) time.Time {
	trimmed := strings.TrimSpace(raw)

	for _, candidate := range transactionDateLayouts {
		if len(trimmed) < candidate.width {
			continue
		}

		parsed, err := time.Parse(candidate.layout, trimmed[:candidate.width])
		if err != nil {
			continue
		}

		// Two-digit years always map into the 2000s.
		if candidate.layout == "06-01-02" && parsed.Year() < 2000 {
			parsed = parsed.AddDate(100, 0, 0)
		}
		return parsed
	}

	return now
}
