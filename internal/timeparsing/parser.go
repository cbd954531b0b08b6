// Package timeparsing parses the completion dates written into task metadata.
//
// Parsing is layered; the first layer that accepts the input wins:
//  1. Absolute timestamp (date-only, RFC3339, date with minutes)
//  2. Compact duration relative to now (-1d, -2w, +6h)
//  3. Natural language (yesterday, last friday, 3 days ago)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format used when writing completion dates.
const DateLayout = "2006-01-02"

var absoluteLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
}

// compactDurationRe matches compact duration patterns: [+-]?(\d+)([hdwmy])
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// Parse resolves a completion-date value relative to now.
func Parse(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := ParseAbsolute(s); err == nil {
		return t, nil
	}
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	return ParseNaturalLanguage(s, now)
}

// ParseAbsolute accepts the fixed timestamp layouts.
func ParseAbsolute(s string) (time.Time, error) {
	// Trailing annotations like "2025-01-01 (by alice)" are common.
	if i := strings.IndexAny(s, "(|"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an absolute timestamp: %q", s)
}

// ParseCompactDuration parses compact duration syntax and returns the resulting time.
//
// Units: h = hours, d = days, w = weeks, m = months, y = years.
// "-1d" is one day before now; a missing sign means forward.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	return applyDuration(now, amount, matches[3]), nil
}

func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	default:
		return base
	}
}

// IsCompactDuration returns true if the string matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

// FormatDate renders t the way completion metadata is written.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
