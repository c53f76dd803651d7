package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/calendar"
	"github.com/kdeosingh/us-market-hours-api/internal/config"
	"github.com/kdeosingh/us-market-hours-api/internal/domain"
	"github.com/kdeosingh/us-market-hours-api/internal/httpapi"
	"github.com/kdeosingh/us-market-hours-api/internal/refresh"
	"github.com/kdeosingh/us-market-hours-api/internal/source"
	"github.com/kdeosingh/us-market-hours-api/internal/store"
	"github.com/kdeosingh/us-market-hours-api/internal/util"
)

func main() {
	cfgPath := "config/mktcal.yaml"
	if p := os.Getenv("MKTCAL_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(log)

	st, err := store.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Error("opening store", "path", cfg.Storage.SQLitePath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Serve whatever calendar is already persisted; the refresh pipeline
	// replaces it when it succeeds.
	cal := calendar.New()
	if err := bootstrapSnapshot(ctx, st, cal); err != nil {
		log.Error("loading persisted calendar", "error", err)
		os.Exit(1)
	}
	log.Info("calendar bootstrapped", "holidays", cal.Snapshot().Len())

	var sched *refresh.Scheduler
	var trigger httpapi.RefreshTrigger
	if cfg.RefreshEnabled() {
		src := buildSource(cfg)
		orc := refresh.New(
			src,
			st,
			store.NewScheduleArchive(cfg.Storage.DataDir),
			cal,
			time.Duration(cfg.Refresh.TimeoutSeconds)*time.Second,
			log,
		)
		sched = refresh.NewScheduler(orc, cfg.Refresh.HourUTC, log)
		if err := sched.Start(ctx, cfg.Refresh.RunOnStart); err != nil {
			log.Error("starting scheduler", "error", err)
			os.Exit(1)
		}
		trigger = sched
	} else {
		log.Info("refresh pipeline disabled")
	}

	api := httpapi.NewServer(cal, st, trigger, log)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: api.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("signal received, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if sched != nil {
		sched.Stop()
	}
	log.Info("mktcal-server exiting")
}

// bootstrapSnapshot publishes the persisted calendar, stamped with the
// last successful refresh time when one exists.
func bootstrapSnapshot(ctx context.Context, st *store.SQLiteStore, cal *calendar.Calendar) error {
	holidays, err := st.AllHolidays(ctx)
	if err != nil {
		return err
	}

	var loadedAt time.Time
	if last, err := st.LastRefresh(ctx); err == nil && last != nil && last.Status == domain.RefreshSuccess {
		loadedAt = last.RunAt
	}

	cal.Publish(calendar.NewSnapshot(holidays, loadedAt))
	return nil
}

func buildSource(cfg *config.Config) source.ScheduleSource {
	if cfg.Refresh.Source == "rules" {
		return source.NewRuleSource()
	}
	return source.NewAlpacaSource(
		cfg.Alpaca.APIKey,
		cfg.Alpaca.APISecret,
		cfg.Alpaca.BaseURL,
		time.Duration(cfg.Refresh.TimeoutSeconds)*time.Second,
	)
}
