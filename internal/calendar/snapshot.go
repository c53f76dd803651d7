// Package calendar holds the in-memory market calendar: an immutable
// snapshot of holiday and early-close data plus the pure classification
// logic that answers "is the market open at time T". It performs no I/O;
// the refresh pipeline builds snapshots and publishes them here.
package calendar

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// ExchangeTimeZone is the IANA zone of the exchange (NYSE/NASDAQ).
const ExchangeTimeZone = "America/New_York"

var (
	etOnce sync.Once
	etLoc  *time.Location
	etErr  error
)

// exchangeLocation resolves the exchange time zone once per process.
func exchangeLocation() (*time.Location, error) {
	etOnce.Do(func() {
		etLoc, etErr = time.LoadLocation(ExchangeTimeZone)
	})
	return etLoc, etErr
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot is a fully-formed, immutable view of the holiday calendar.
// Readers share snapshots freely across goroutines; a refresh cycle never
// mutates one, it builds a replacement and publishes it whole.
type Snapshot struct {
	days     map[string]domain.Holiday // keyed by "2006-01-02"
	loadedAt time.Time
}

// NewSnapshot builds a snapshot from a holiday set. Later duplicates for
// the same date win, matching the store's replace semantics.
func NewSnapshot(holidays []domain.Holiday, loadedAt time.Time) *Snapshot {
	days := make(map[string]domain.Holiday, len(holidays))
	for _, h := range holidays {
		days[h.Date] = h
	}
	return &Snapshot{days: days, loadedAt: loadedAt}
}

// EmptySnapshot is the bootstrap calendar used before any refresh has
// succeeded: only the regular weekday/hours rules apply.
func EmptySnapshot() *Snapshot {
	return &Snapshot{days: map[string]domain.Holiday{}}
}

// Lookup returns the holiday entry for an exchange-local date, if any.
func (s *Snapshot) Lookup(date string) (domain.Holiday, bool) {
	h, ok := s.days[date]
	return h, ok
}

// Range returns the holidays with start <= date <= end, ordered by date.
// Bounds are "2006-01-02" strings, so lexicographic compare is date compare.
func (s *Snapshot) Range(start, end string) []domain.Holiday {
	var out []domain.Holiday
	for d, h := range s.days {
		if d >= start && d <= end {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Len returns the number of holiday entries.
func (s *Snapshot) Len() int { return len(s.days) }

// LoadedAt reports when this snapshot was committed (zero for bootstrap).
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// ---------------------------------------------------------------------------
// Calendar, the published snapshot handle
// ---------------------------------------------------------------------------

// Calendar hands the current snapshot to readers via a single atomic
// pointer. Publish is the only write; the query path never takes a lock.
type Calendar struct {
	current atomic.Pointer[Snapshot]
}

// New creates a Calendar holding the empty bootstrap snapshot.
func New() *Calendar {
	c := &Calendar{}
	c.current.Store(EmptySnapshot())
	return c
}

// Snapshot returns the currently published snapshot.
func (c *Calendar) Snapshot() *Snapshot {
	return c.current.Load()
}

// Publish swaps in a new snapshot. Readers holding the previous snapshot
// keep a consistent view; new readers see the replacement immediately.
func (c *Calendar) Publish(s *Snapshot) {
	c.current.Store(s)
}
