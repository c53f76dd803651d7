package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/calendar"
	"github.com/kdeosingh/us-market-hours-api/internal/config"
	"github.com/kdeosingh/us-market-hours-api/internal/domain"
	"github.com/kdeosingh/us-market-hours-api/internal/refresh"
	"github.com/kdeosingh/us-market-hours-api/internal/source"
	"github.com/kdeosingh/us-market-hours-api/internal/store"
	"github.com/kdeosingh/us-market-hours-api/internal/util"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch cmd := os.Args[1]; cmd {
	case "init-db":
		cfg := loadConfig(cmd, os.Args[2:], nil)
		st := openStore(cfg)
		defer st.Close()
		fmt.Printf("db initialized: %s\n", cfg.Storage.SQLitePath)

	case "refresh":
		cfg := loadConfig(cmd, os.Args[2:], nil)
		st := openStore(cfg)
		defer st.Close()

		log := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
		orc := refresh.New(
			buildSource(cfg),
			st,
			store.NewScheduleArchive(cfg.Storage.DataDir),
			calendar.New(),
			time.Duration(cfg.Refresh.TimeoutSeconds)*time.Second,
			log,
		)
		rec, err := orc.RunCycle(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "refresh failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("refresh ok: %d records from %s\n", rec.RecordsIngested, rec.Source)

	case "status":
		cfg := loadConfig(cmd, os.Args[2:], nil)
		st := openStore(cfg)
		defer st.Close()

		ctx := context.Background()
		holidays, err := st.AllHolidays(ctx)
		fatalIf(err)
		fmt.Printf("holidays stored: %d\n", len(holidays))

		last, err := st.LastRefresh(ctx)
		fatalIf(err)
		if last == nil {
			fmt.Println("last refresh:    never")
			return
		}
		fmt.Printf("last refresh:    %s %s (%d records, source %s)\n",
			last.RunAt.Format(time.RFC3339), last.Status, last.RecordsIngested, last.Source)
		if last.Error != "" {
			fmt.Printf("last error:      %s\n", last.Error)
		}

	case "classify":
		var at string
		cfg := loadConfig(cmd, os.Args[2:], func(fs *flag.FlagSet) {
			fs.StringVar(&at, "at", "", "instant to classify (RFC 3339), default now")
		})
		st := openStore(cfg)
		defer st.Close()

		instant := time.Now()
		if at != "" {
			parsed, err := time.Parse(time.RFC3339, at)
			fatalIf(err)
			instant = parsed
		}

		holidays, err := st.AllHolidays(context.Background())
		fatalIf(err)
		snap := calendar.NewSnapshot(holidays, time.Now())

		state, err := calendar.Classify(instant, snap)
		fatalIf(err)
		fmt.Printf("%s: %s", instant.Format(time.RFC3339), state.Status)
		if state.Reason != "" {
			fmt.Printf(" (%s)", state.Reason)
		}
		fmt.Println()

		if nextOpen, err := calendar.NextBoundary(instant, domain.NextOpen, snap); err == nil {
			fmt.Printf("next open:  %s\n", nextOpen.Format(time.RFC3339))
		}
		if nextClose, err := calendar.NextBoundary(instant, domain.NextClose, snap); err == nil {
			fmt.Printf("next close: %s\n", nextClose.Format(time.RFC3339))
		}

	default:
		usage()
		os.Exit(2)
	}
}

// loadConfig parses the per-subcommand flag set (always including -config)
// and loads the configuration.
func loadConfig(cmd string, args []string, extra func(*flag.FlagSet)) *config.Config {
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	cfgPath := fs.String("config", "config/mktcal.yaml", "config path (YAML)")
	if extra != nil {
		extra(fs)
	}
	_ = fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	fatalIf(err)
	return cfg
}

func openStore(cfg *config.Config) *store.SQLiteStore {
	st, err := store.Open(cfg.Storage.SQLitePath)
	fatalIf(err)
	return st
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

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  mktcal init-db  -config config/mktcal.yaml")
	fmt.Fprintln(os.Stderr, "  mktcal refresh  -config config/mktcal.yaml")
	fmt.Fprintln(os.Stderr, "  mktcal status   -config config/mktcal.yaml")
	fmt.Fprintln(os.Stderr, "  mktcal classify -config config/mktcal.yaml [-at RFC3339]")
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
