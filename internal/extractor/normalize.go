package extractor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidAmount indicates text that could not be read as an amount.
var ErrInvalidAmount = errors.New("invalid amount")

var currencyMarkers = []string{"rp.", "rp", "idr", "usd", "eur", "gbp", "$", "€", "£", "¥"}

var amountMultipliers = []struct {
	suffix string
	factor float64
}{
	{"juta", 1_000_000},
	{"ribu", 1_000},
	{"jt", 1_000_000},
	{"rb", 1_000},
	{"k", 1_000},
	{"m", 1_000_000},
}

// ParseAmount reads an amount written the way people and models write them:
// "25000", "25.000", "25,000", "Rp 25.000", "$12.50", "1.234,56", "25k", "10rb", "1,5jt".
func ParseAmount(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}

	for _, marker := range currencyMarkers {
		s = strings.TrimSpace(strings.TrimPrefix(s, marker))
		s = strings.TrimSpace(strings.TrimSuffix(s, marker))
	}
	s = strings.ReplaceAll(s, " ", "")

	factor := 1.0
	for _, m := range amountMultipliers {
		if strings.HasSuffix(s, m.suffix) {
			s = strings.TrimSuffix(s, m.suffix)
			factor = m.factor
			break
		}
	}

	if s == "" || strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != ','
	}) >= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	value, err := strconv.ParseFloat(normalizeSeparators(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	value *= factor
	if negative {
		value = -value
	}
	return value, nil
}

// normalizeSeparators rewrites a digit string with mixed grouping and decimal marks
// into a form strconv.ParseFloat accepts.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// The later mark is the decimal separator.
		if lastDot > lastComma {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(strings.ReplaceAll(s, ".", ""), ",", ".", 1)
	case lastDot >= 0:
		return resolveSingleSeparator(s, ".")
	case lastComma >= 0:
		return resolveSingleSeparator(s, ",")
	default:
		return s
	}
}

// resolveSingleSeparator decides whether sep groups thousands or marks decimals.
// Repeated marks, or a single mark followed by exactly three digits, group thousands.
func resolveSingleSeparator(s, sep string) string {
	if strings.Count(s, sep) > 1 {
		return strings.ReplaceAll(s, sep, "")
	}
	idx := strings.Index(s, sep)
	if len(s)-idx-1 == 3 && idx > 0 && s[:idx] != "0" {
		return strings.ReplaceAll(s, sep, "")
	}
	return strings.Replace(s, sep, ".", 1)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
}

// ParseDate reads a calendar date relative to ref. The result is midnight in ref's
// location. It reports false and returns ref's date when raw cannot be read.
func ParseDate(raw string, ref time.Time) (time.Time, bool) {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ref.Location())
	}

	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "":
		return day(ref), false
	case "today", "hari ini", "now":
		return day(ref), true
	case "yesterday", "kemarin":
		return day(ref.AddDate(0, 0, -1)), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, ref.Location()); err == nil {
			return day(t), true
		}
	}
	return day(ref), false
}

// cleanText trims whitespace and collapses internal runs of spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
