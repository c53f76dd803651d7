// Package refresh runs the calendar refresh pipeline: acquire the
// schedule from a source, validate it, commit it to the store, publish a
// fresh snapshot, and record the outcome in the audit log. A failed cycle
// leaves the previous snapshot authoritative.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/calendar"
	"github.com/kdeosingh/us-market-hours-api/internal/domain"
	"github.com/kdeosingh/us-market-hours-api/internal/source"
	"github.com/kdeosingh/us-market-hours-api/internal/store"
	"github.com/kdeosingh/us-market-hours-api/internal/util"
)

// ErrInFlight is returned when a cycle is requested while another one is
// still running. The caller should treat it as "already being handled".
var ErrInFlight = errors.New("refresh cycle already in flight")

// ValidationError means the acquired schedule violated an invariant and
// the cycle was aborted before touching the store.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedule validation failed: %s", e.Detail)
}

// Store is the persistence the orchestrator needs: the holiday rows plus
// the append-only refresh log.
type Store interface {
	store.CalendarStore
	store.RefreshLog
}

// Archiver keeps the raw acquired schedule for each cycle. Archive
// failures are logged, not fatal; the archive is diagnostic data.
type Archiver interface {
	Write(runAt time.Time, holidays []domain.Holiday) (string, error)
}

// Orchestrator drives one refresh cycle end to end.
type Orchestrator struct {
	src     source.ScheduleSource
	store   Store
	archive Archiver
	cal     *calendar.Calendar
	log     *slog.Logger
	timeout time.Duration

	now           func() time.Time
	retryAttempts int
	retryBase     time.Duration
	inFlight      atomic.Bool
}

// New wires an orchestrator. archive may be nil to disable raw archiving.
func New(src source.ScheduleSource, st Store, archive Archiver, cal *calendar.Calendar, timeout time.Duration, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		src:     src,
		store:   st,
		archive: archive,
		cal:     cal,
		log:     log.With("component", "refresh"),
		timeout: timeout,

		now:           time.Now,
		retryAttempts: 3,
		retryBase:     2 * time.Second,
	}
}

// RunCycle executes one refresh: fetch the schedule for the current and
// next calendar year, validate it, replace that date range in the store,
// publish a snapshot rebuilt from the full store contents, archive the raw
// rows, and append an audit record. Every failure is absorbed into a
// FAILURE record; the previously published snapshot stays in effect.
// Cycles are serialized; a concurrent call returns ErrInFlight.
func (o *Orchestrator) RunCycle(ctx context.Context) (domain.RefreshRecord, error) {
	if !o.inFlight.CompareAndSwap(false, true) {
		return domain.RefreshRecord{}, ErrInFlight
	}
	defer o.inFlight.Store(false)

	runAt := o.now().UTC()
	rec := domain.RefreshRecord{
		RunAt:  runAt,
		Source: o.src.Name(),
	}

	startYear := runAt.Year()
	endYear := startYear + 1

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	o.log.Info("refresh cycle starting", "source", o.src.Name(), "start_year", startYear, "end_year", endYear)

	holidays, err := o.acquire(ctx, startYear, endYear)
	if err != nil {
		return o.fail(ctx, rec, err)
	}
	if err := validate(holidays, startYear, endYear); err != nil {
		return o.fail(ctx, rec, err)
	}

	rangeStart := fmt.Sprintf("%04d-01-01", startYear)
	rangeEnd := fmt.Sprintf("%04d-12-31", endYear)
	if err := o.store.ReplaceRange(ctx, rangeStart, rangeEnd, holidays); err != nil {
		return o.fail(ctx, rec, fmt.Errorf("committing schedule: %w", err))
	}

	// Rebuild the snapshot from the whole store so dates outside the
	// refreshed range stay visible to readers.
	all, err := o.store.AllHolidays(ctx)
	if err != nil {
		return o.fail(ctx, rec, fmt.Errorf("reloading schedule: %w", err))
	}
	o.cal.Publish(calendar.NewSnapshot(all, runAt))

	if o.archive != nil {
		if path, err := o.archive.Write(runAt, holidays); err != nil {
			o.log.Warn("raw schedule archive failed", "error", err)
		} else {
			o.log.Debug("raw schedule archived", "path", path)
		}
	}

	rec.Status = domain.RefreshSuccess
	rec.RecordsIngested = len(holidays)
	if err := o.store.AppendRefresh(ctx, rec); err != nil {
		o.log.Warn("appending refresh record failed", "error", err)
	}

	o.log.Info("refresh cycle committed", "records", len(holidays))
	return rec, nil
}

// acquire fetches with retry. Parse and validation problems are permanent:
// retrying the same malformed response cannot help.
func (o *Orchestrator) acquire(ctx context.Context, startYear, endYear int) ([]domain.Holiday, error) {
	var holidays []domain.Holiday
	err := util.Retry(ctx, o.retryAttempts, o.retryBase, func() error {
		hs, err := o.src.FetchSchedule(ctx, startYear, endYear)
		if err != nil {
			var pe *source.ParseError
			if errors.As(err, &pe) {
				return util.Permanent(err)
			}
			return err
		}
		holidays = hs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holidays, nil
}

// fail records a failed cycle and hands the error back to the trigger.
func (o *Orchestrator) fail(ctx context.Context, rec domain.RefreshRecord, cause error) (domain.RefreshRecord, error) {
	rec.Status = domain.RefreshFailure
	rec.Error = cause.Error()

	o.log.Error("refresh cycle failed", "source", rec.Source, "error", cause)

	// Best effort even when the cycle died to a canceled context.
	if err := o.store.AppendRefresh(context.WithoutCancel(ctx), rec); err != nil {
		o.log.Warn("appending refresh record failed", "error", err)
	}
	return rec, cause
}

// validate enforces the schedule invariants before anything is committed:
// well-formed rows, at most one entry per date, and every date inside the
// fetched year range.
func validate(holidays []domain.Holiday, startYear, endYear int) error {
	seen := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		if err := h.Validate(); err != nil {
			return &ValidationError{Detail: err.Error()}
		}
		if _, dup := seen[h.Date]; dup {
			return &ValidationError{Detail: fmt.Sprintf("duplicate date %s", h.Date)}
		}
		seen[h.Date] = struct{}{}

		d, _ := time.Parse("2006-01-02", h.Date)
		if y := d.Year(); y < startYear || y > endYear {
			return &ValidationError{Detail: fmt.Sprintf("date %s outside fetched range %d..%d", h.Date, startYear, endYear)}
		}
	}
	return nil
}
