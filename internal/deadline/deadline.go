// Package deadline evaluates case deadlines. Everything here is a pure
// function of the case fields and a reference instant, so dashboard counts
// are recomputed on every query and never cached.
package deadline

import (
	"time"
)

// DefaultWarningDays is the expiry window used when config leaves it unset.
const DefaultWarningDays = 7

// DaysRemaining returns whole days between asOf and the case deadline:
// date(openedAt) + initialDays + extensionDays. Negative means overdue.
// Both instants are truncated to their calendar date before subtracting.
func DaysRemaining(openedAt time.Time, initialDays, extensionDays int, asOf time.Time) int {
	due := truncate(openedAt).AddDate(0, 0, initialDays+extensionDays)
	return int(due.Sub(truncate(asOf)).Hours() / 24)
}

// ExpiringSoon reports whether a case deadline falls inside the warning
// window: 0 <= remaining < warningDays. Overdue cases are excluded; closed
// cases are the caller's concern (terminal-stage check happens against the
// workflow table).
func ExpiringSoon(openedAt time.Time, initialDays, extensionDays int, asOf time.Time, warningDays int) bool {
	if warningDays <= 0 {
		warningDays = DefaultWarningDays
	}
	remaining := DaysRemaining(openedAt, initialDays, extensionDays, asOf)
	return remaining >= 0 && remaining < warningDays
}

func truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
