// Package source acquires the holiday and early-close schedule from an
// upstream authority and parses it into the calendar's entity shape. It
// never writes to the store; the refresh orchestrator owns committing.
package source

import (
	"context"
	"fmt"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// ScheduleSource fetches the holiday/early-close schedule for an inclusive
// year range.
type ScheduleSource interface {
	// Name identifies the source in logs and refresh records.
	Name() string

	// FetchSchedule returns all non-regular trading dates with
	// startYear <= year <= endYear. Dates are the source's observed dates;
	// no observance rules are re-derived by callers.
	FetchSchedule(ctx context.Context, startYear, endYear int) ([]domain.Holiday, error)
}

// AcquisitionError is a transient failure reaching the upstream source:
// network errors, timeouts, non-2xx responses. Retrying later is expected
// to succeed.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquiring schedule from %s: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ParseError means the upstream response did not have the expected shape.
// Unlike AcquisitionError this signals a data-format regression that needs
// operator attention, so the orchestrator logs it distinctly.
type ParseError struct {
	Source string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %s schedule: %s: %v", e.Source, e.Detail, e.Err)
	}
	return fmt.Sprintf("parsing %s schedule: %s", e.Source, e.Detail)
}

func (e *ParseError) Unwrap() error { return e.Err }
