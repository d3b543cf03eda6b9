// Package staleness decides when a milestone's current state must be
// treated as a forecast rather than fresh truth.
package staleness

import "time"

// Windows holds the freshness windows. The window tightens as the due date
// approaches: risk tolerance for missing data shrinks near the deadline.
type Windows struct {
	// Default is the normal freshness window (reports older than this are
	// stale).
	Default time.Duration
	// NearDue is the tightened window applied close to the expected date.
	NearDue time.Duration
	// Proximity defines how close to the expected date the tightened
	// window kicks in.
	Proximity time.Duration
}

// DefaultWindows returns the standard 7-day window tightening to 3 days
// within 3 days of the expected date.
func DefaultWindows() Windows {
	return Windows{
		Default:   7 * 24 * time.Hour,
		NearDue:   3 * 24 * time.Hour,
		Proximity: 3 * 24 * time.Hour,
	}
}

// FromDays builds Windows from day counts, falling back to defaults for
// non-positive values.
func FromDays(defaultDays, nearDueDays, proximityDays int) Windows {
	w := DefaultWindows()
	if defaultDays > 0 {
		w.Default = time.Duration(defaultDays) * 24 * time.Hour
	}
	if nearDueDays > 0 {
		w.NearDue = time.Duration(nearDueDays) * 24 * time.Hour
	}
	if proximityDays > 0 {
		w.Proximity = time.Duration(proximityDays) * 24 * time.Hour
	}
	return w
}

// IsStale reports whether a milestone with the given last report time and
// expected date has no fresh-enough report at now. A zero lastReport means
// no report has ever arrived, which is always stale.
func (w Windows) IsStale(lastReport, expectedDate, now time.Time) bool {
	if lastReport.IsZero() {
		return true
	}
	window := w.Default
	if !expectedDate.IsZero() && expectedDate.Sub(now) <= w.Proximity {
		window = w.NearDue
	}
	return now.Sub(lastReport) > window
}
