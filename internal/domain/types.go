// Package domain defines the core types of the market hours calendar:
// holidays, early-close overrides, session states, and refresh audit
// records. It has no dependencies beyond the standard library.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Time-of-day
// ---------------------------------------------------------------------------

// TimeOfDay is a clock time expressed as minutes after midnight in the
// exchange's local time zone (US Eastern). It sidesteps time.Time for
// values that have no date or zone of their own.
type TimeOfDay int

// Regular NYSE/NASDAQ session bounds, exchange-local.
const (
	RegularOpen  TimeOfDay = 9*60 + 30 // 09:30 ET
	RegularClose TimeOfDay = 16 * 60   // 16:00 ET

	// EarlyCloseTime is the usual half-day close (13:00 ET).
	EarlyCloseTime TimeOfDay = 13 * 60
)

// ParseTimeOfDay parses "HH:MM" into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parsing time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// TimeOfDayFromTime extracts the clock time from t in t's location.
func TimeOfDayFromTime(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// String renders the time as "HH:MM".
func (td TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(td)/60, int(td)%60)
}

// On anchors the clock time onto the given calendar date in loc.
func (td TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(td)/60, int(td)%60, 0, 0, loc)
}

// ---------------------------------------------------------------------------
// Holidays
// ---------------------------------------------------------------------------

// ClosureKind distinguishes a full market closure from an early close.
type ClosureKind string

const (
	FullClosure ClosureKind = "full"
	EarlyClose  ClosureKind = "early_close"
)

// Holiday is one non-regular trading date: either the market never opens
// (FullClosure) or it opens normally and closes at CloseAt (EarlyClose).
// Dates are "observed" dates as published by the upstream source; no
// weekend-shift rules are re-derived locally. At most one Holiday exists
// per calendar date.
type Holiday struct {
	Date    string      // calendar date, "2006-01-02", exchange-local
	Name    string      // e.g. "Thanksgiving", "Christmas Eve"
	Kind    ClosureKind // full or early_close
	CloseAt TimeOfDay   // close override; meaningful only for EarlyClose
}

// Validate checks the per-row invariants: a parseable date and, for early
// closes, a close time strictly inside the regular session.
func (h Holiday) Validate() error {
	if _, err := time.Parse("2006-01-02", h.Date); err != nil {
		return fmt.Errorf("holiday date %q: %w", h.Date, err)
	}
	switch h.Kind {
	case FullClosure:
		return nil
	case EarlyClose:
		if h.CloseAt <= RegularOpen || h.CloseAt >= RegularClose {
			return fmt.Errorf("early close %s at %s is outside (%s, %s)",
				h.Date, h.CloseAt, RegularOpen, RegularClose)
		}
		return nil
	default:
		return fmt.Errorf("holiday %s: unknown closure kind %q", h.Date, h.Kind)
	}
}

// ---------------------------------------------------------------------------
// Session states
// ---------------------------------------------------------------------------

// SessionStatus is the trading-session classification for an instant.
type SessionStatus string

const (
	StatusOpen        SessionStatus = "OPEN"
	StatusWeekend     SessionStatus = "CLOSED_WEEKEND"
	StatusHoliday     SessionStatus = "CLOSED_HOLIDAY"
	StatusBeforeHours SessionStatus = "CLOSED_BEFORE_HOURS"
	StatusAfterHours  SessionStatus = "CLOSED_AFTER_HOURS"
	StatusEarlyClose  SessionStatus = "CLOSED_EARLY"
)

// SessionState is the result of classifying an instant.
type SessionState struct {
	Status SessionStatus

	// Reason carries the holiday name for CLOSED_HOLIDAY and CLOSED_EARLY.
	Reason string

	// ClosedAt is the effective close time for CLOSED_EARLY.
	ClosedAt TimeOfDay
}

// IsOpen reports whether the market is trading in this state.
func (s SessionState) IsOpen() bool { return s.Status == StatusOpen }

// BoundaryDirection selects which session transition NextBoundary looks for.
type BoundaryDirection string

const (
	NextOpen  BoundaryDirection = "next_open"
	NextClose BoundaryDirection = "next_close"
)

// ---------------------------------------------------------------------------
// Refresh audit records
// ---------------------------------------------------------------------------

// RefreshStatus is the outcome of one refresh cycle.
type RefreshStatus string

const (
	RefreshSuccess RefreshStatus = "success"
	RefreshFailure RefreshStatus = "failure"
)

// RefreshRecord is one row of the append-only refresh audit log. The most
// recent success row defines the current calendar version.
type RefreshRecord struct {
	RunAt           time.Time
	Status          RefreshStatus
	Source          string // e.g. "alpaca", "rules"
	RecordsIngested int
	Error           string // failure detail; empty on success
}
