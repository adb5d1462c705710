// Package normalizer handles the Brazilian number and date formats found in
// bank statement exports.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")
	ErrInvalidDate   = errors.New("invalid date format")
)

// ParseAmount converts a Brazilian or plain numeric string into a decimal.
// When a comma is present it is the decimal separator and every dot is a
// thousands separator: "1.234,56" parses as 1234.56. Without a comma the
// value is parsed as-is ("1234.56", "-50").
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, ErrInvalidAmount
	}

	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Date layouts accepted in statement rows, day-first as Brazilian banks
// write them, with an ISO fallback. Two-digit years land in the 2000s.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"02/01/06",
	"02-01-06",
	"02.01.06",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate parses a statement date. The result carries no time component.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

var spaceRe = regexp.MustCompile(`\s+`)

// CleanDescription trims and collapses whitespace in provider text.
func CleanDescription(raw string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")
}
