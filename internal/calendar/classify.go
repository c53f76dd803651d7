package calendar

import (
	"errors"
	"fmt"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// Query-path errors, surfaced directly to the caller.
var (
	// ErrInvalidInstant means the input instant cannot be classified,
	// typically a zero time or an unresolvable exchange time zone.
	ErrInvalidInstant = errors.New("invalid instant")

	// ErrNoUpcomingSession means the boundary search exhausted its
	// lookahead without finding a trading session. Near year-end this
	// usually indicates the next year's calendar has not been ingested.
	ErrNoUpcomingSession = errors.New("no upcoming session within search bound")
)

// boundaryLookaheadDays bounds the day-by-day NextBoundary scan. Two
// weeks covers any run of weekends plus clustered holidays.
const boundaryLookaheadDays = 14

// Classify determines the trading-session state at instant t against the
// given snapshot. Priority order: full closure, weekend, before-hours,
// early/after close, open. All date and clock decisions happen in
// exchange-local time (ET, DST-aware).
func Classify(t time.Time, snap *Snapshot) (domain.SessionState, error) {
	local, err := toExchangeLocal(t)
	if err != nil {
		return domain.SessionState{}, err
	}

	date := local.Format("2006-01-02")
	entry, hasEntry := snap.Lookup(date)

	if hasEntry && entry.Kind == domain.FullClosure {
		return domain.SessionState{Status: domain.StatusHoliday, Reason: entry.Name}, nil
	}

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return domain.SessionState{Status: domain.StatusWeekend}, nil
	}

	closeAt := domain.RegularClose
	earlyClose := hasEntry && entry.Kind == domain.EarlyClose
	if earlyClose {
		closeAt = entry.CloseAt
	}

	tod := domain.TimeOfDayFromTime(local)
	switch {
	case tod < domain.RegularOpen:
		return domain.SessionState{Status: domain.StatusBeforeHours}, nil
	case tod >= closeAt:
		if earlyClose {
			return domain.SessionState{
				Status:   domain.StatusEarlyClose,
				Reason:   entry.Name,
				ClosedAt: closeAt,
			}, nil
		}
		return domain.SessionState{Status: domain.StatusAfterHours}, nil
	default:
		return domain.SessionState{Status: domain.StatusOpen}, nil
	}
}

// NextBoundary finds the next session transition strictly after t: the
// next open (NextOpen) or the next close (NextClose). The scan walks
// forward one exchange-local day at a time, bounded at two weeks, and
// fails with ErrNoUpcomingSession past the bound.
func NextBoundary(t time.Time, dir domain.BoundaryDirection, snap *Snapshot) (time.Time, error) {
	local, err := toExchangeLocal(t)
	if err != nil {
		return time.Time{}, err
	}

	switch dir {
	case domain.NextOpen, domain.NextClose:
	default:
		return time.Time{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidInstant, dir)
	}

	day := local
	for i := 0; i <= boundaryLookaheadDays; i++ {
		date := day.Format("2006-01-02")
		if isTradingDate(day, snap) {
			var boundary time.Time
			if dir == domain.NextOpen {
				boundary = domain.RegularOpen.On(day, day.Location())
			} else {
				closeAt := domain.RegularClose
				if entry, ok := snap.Lookup(date); ok && entry.Kind == domain.EarlyClose {
					closeAt = entry.CloseAt
				}
				boundary = closeAt.On(day, day.Location())
			}
			if boundary.After(local) {
				return boundary, nil
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return time.Time{}, ErrNoUpcomingSession
}

// isTradingDate reports whether the market opens at all on the given
// exchange-local day.
func isTradingDate(day time.Time, snap *Snapshot) bool {
	if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if entry, ok := snap.Lookup(day.Format("2006-01-02")); ok && entry.Kind == domain.FullClosure {
		return false
	}
	return true
}

// toExchangeLocal validates the instant and converts it into exchange time.
func toExchangeLocal(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidInstant)
	}
	loc, err := exchangeLocation()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInstant, err)
	}
	return t.In(loc), nil
}
