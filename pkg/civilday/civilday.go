// Package civilday handles calendar days carried as opaque YYYY-MM-DD strings.
//
// A civil day has no time of day and no zone. It is the uniqueness key for check-ins and
// the join key for the daily status view, so values are compared as strings and only
// ever produced by Format or validated by Parse.
package civilday

import (
	"fmt"
	"time"
)

// Layout is the only accepted representation.
const Layout = "2006-01-02"

// Parse validates raw and returns it unchanged when it is a real calendar date in Layout.
func Parse(raw string) (string, error) {
	t, err := time.Parse(Layout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid day %q, expected YYYY-MM-DD", raw)
	}
	// time.Parse accepts some inputs that do not round-trip, reject them.
	if t.Format(Layout) != raw {
		return "", fmt.Errorf("invalid day %q, expected YYYY-MM-DD", raw)
	}
	return raw, nil
}

// Format renders the civil day that contains t in loc.
func Format(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(Layout)
}

// Today returns the civil day of now in the reference location.
func Today(now time.Time, loc *time.Location) string {
	return Format(now, loc)
}

// Valid reports whether raw is an acceptable civil day.
func Valid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}
