// Package clinicaltime normalizes the heterogeneous timestamp strings found in
// clinical data feeds. Upstream devices and legacy exports produce a mix of
// RFC 3339, space-separated date/time, and offset-less values; everything here
// is normalized to UTC so that "most recent" comparisons are stable regardless
// of the literal format.
package clinicaltime

import (
	"strings"
	"time"
)

// Layouts accepted by Parse, tried in order after separator normalization.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Parse converts a stored timestamp string to a UTC time.Time. It accepts both
// "T"- and space-separated date/time, trailing "Z", ±hh:mm and ±hhmm offsets,
// and fractional seconds. A value with no offset is assumed to be UTC. An
// empty or unparseable value returns the zero time, which sorts before every
// real timestamp and therefore never wins a most-recent comparison.
func Parse(value string) time.Time {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}
	}

	// Legacy rows use a space between date and time.
	if strings.Contains(s, " ") && !strings.Contains(s, "T") {
		s = strings.Replace(s, " ", "T", 1)
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// MustAfter reports whether a is strictly more recent than b once both are
// normalized. Unparseable inputs lose against any parseable one.
func MustAfter(a, b string) bool {
	return Parse(a).After(Parse(b))
}

// Format renders a time as the canonical UTC RFC 3339 form used on every
// write path.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Now returns the current instant truncated to seconds in UTC, the precision
// stored throughout the schema.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
