package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// Scheduler triggers a refresh cycle once a day at a fixed UTC hour.
// Out-of-band triggers (TriggerNow) run through the same orchestrator and
// are serialized with the scheduled runs by its in-flight guard.
type Scheduler struct {
	orc     *Orchestrator
	cron    *cron.Cron
	log     *slog.Logger
	hourUTC int
	baseCtx context.Context
}

// NewScheduler builds a scheduler firing daily at hourUTC (0..23).
func NewScheduler(orc *Orchestrator, hourUTC int, log *slog.Logger) *Scheduler {
	return &Scheduler{
		orc:     orc,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		log:     log.With("component", "scheduler"),
		hourUTC: hourUTC,
		baseCtx: context.Background(),
	}
}

// Start registers the daily entry and starts the cron loop. If runOnStart
// is set, one cycle runs synchronously first so the service comes up with
// fresh data when it can get it.
func (s *Scheduler) Start(ctx context.Context, runOnStart bool) error {
	s.baseCtx = ctx

	spec := fmt.Sprintf("0 %d * * *", s.hourUTC)
	if _, err := s.cron.AddFunc(spec, func() { s.run(s.baseCtx) }); err != nil {
		return fmt.Errorf("registering refresh schedule %q: %w", spec, err)
	}

	if runOnStart {
		s.run(ctx)
	}

	s.cron.Start()
	s.log.Info("scheduler started", "hour_utc", s.hourUTC)
	return nil
}

// TriggerNow runs a cycle outside the daily schedule, e.g. from the HTTP
// refresh endpoint. ErrInFlight passes through when a cycle is running.
func (s *Scheduler) TriggerNow(ctx context.Context) (domain.RefreshRecord, error) {
	return s.orc.RunCycle(ctx)
}

// Stop halts the cron loop and waits for a running entry to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.orc.RunCycle(ctx); err != nil && !errors.Is(err, ErrInFlight) {
		// Already logged with detail by the orchestrator; this entry just
		// ties the failure to the scheduled trigger.
		s.log.Warn("scheduled refresh failed", "error", err)
	}
}
