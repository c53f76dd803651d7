// Package store persists the market calendar: holiday and early-close
// rows in SQLite, an append-only refresh audit log, and per-cycle raw
// schedule archives in Parquet.
package store

import (
	"context"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// CalendarStore persists holiday and early-close rows. Rows are only ever
// replaced wholesale by a successful refresh cycle, never edited
// individually.
type CalendarStore interface {
	// ReplaceRange atomically swaps all rows with start <= date <= end for
	// the given set. Readers of the store see either the full old range or
	// the full new one.
	ReplaceRange(ctx context.Context, start, end string, holidays []domain.Holiday) error

	// Holidays returns rows with start <= date <= end, ordered by date.
	Holidays(ctx context.Context, start, end string) ([]domain.Holiday, error)

	// AllHolidays returns every stored row ordered by date; used to build
	// the startup snapshot.
	AllHolidays(ctx context.Context) ([]domain.Holiday, error)
}

// RefreshLog is the append-only audit trail of refresh cycle outcomes.
type RefreshLog interface {
	// AppendRefresh records one cycle attempt. Rows are never deleted.
	AppendRefresh(ctx context.Context, rec domain.RefreshRecord) error

	// LastRefresh returns the most recent record, or nil when no cycle has
	// ever run.
	LastRefresh(ctx context.Context) (*domain.RefreshRecord, error)
}

// fixedRFC3339 is a fixed-width UTC timestamp format so that TEXT ordering
// in SQLite matches time ordering.
const fixedRFC3339 = "2006-01-02T15:04:05.000000000Z"

func formatRunAt(t time.Time) string {
	return t.UTC().Format(fixedRFC3339)
}
