// Package civil resolves "now" and calendar dates in the fixed UTC+5 civil
// timezone used for every deadline comparison in the system.
//
// The zone is a fixed numeric offset rather than a host-locale lookup:
// serverless and container hosts cannot be trusted to carry a usable tz
// database, and locale-string round-tripping was the source of off-by-one
// bugs in the system this replaces.
package civil

import (
	"fmt"
	"time"
)

// Location is the civil timezone (UTC+5), with no DST transitions.
var Location = time.FixedZone("UTC+5", 5*60*60)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Time is a wall-clock observation in the civil timezone.
type Time struct {
	wall time.Time
}

// Now returns the current civil time from the given clock.
func Now(clock func() time.Time) Time {
	return At(clock())
}

// At converts an absolute instant to civil time.
func At(t time.Time) Time {
	return Time{wall: t.In(Location)}
}

// Wall returns the underlying instant.
func (t Time) Wall() time.Time { return t.wall }

// Date returns civil midnight of the observed day.
func (t Time) Date() time.Time {
	y, m, d := t.wall.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, Location)
}

// Tomorrow returns civil midnight of the next day.
func (t Time) Tomorrow() time.Time {
	return t.Date().AddDate(0, 0, 1)
}

// Hour returns the civil hour of day (0-23).
func (t Time) Hour() int { return t.wall.Hour() }

// Minute returns the civil minute (0-59).
func (t Time) Minute() int { return t.wall.Minute() }

// ParseDate parses a "YYYY-MM-DD" string as civil midnight. Naive UTC
// parsing of date-only strings shifts the calendar day for any host west
// of the civil zone; parsing in Location avoids that.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse civil date %q: %w", s, err)
	}
	return d, nil
}

// DaysBetween returns the whole-day difference to-from between two civil
// midnights. The fixed offset zone has no DST, so day length is constant.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// SameDay reports whether two instants fall on the same civil calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.In(Location).Date()
	by, bm, bd := b.In(Location).Date()
	return ay == by && am == bm && ad == bd
}
