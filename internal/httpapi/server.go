// Package httpapi exposes the market calendar over JSON HTTP. It holds no
// business logic; every answer comes from the published snapshot, the
// store, or the refresh scheduler.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/calendar"
	"github.com/kdeosingh/us-market-hours-api/internal/domain"
	"github.com/kdeosingh/us-market-hours-api/internal/refresh"
	"github.com/kdeosingh/us-market-hours-api/internal/store"
)

// RefreshTrigger starts an out-of-band refresh cycle.
type RefreshTrigger interface {
	TriggerNow(ctx context.Context) (domain.RefreshRecord, error)
}

// Server serves the market hours API.
type Server struct {
	cal     *calendar.Calendar
	reflog  store.RefreshLog
	trigger RefreshTrigger
	log     *slog.Logger

	now func() time.Time
}

// NewServer creates the API server. trigger may be nil when the refresh
// pipeline is disabled; POST /refresh then answers 503.
func NewServer(cal *calendar.Calendar, reflog store.RefreshLog, trigger RefreshTrigger, log *slog.Logger) *Server {
	return &Server{
		cal:     cal,
		reflog:  reflog,
		trigger: trigger,
		log:     log.With("component", "httpapi"),
		now:     time.Now,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /market-hours/status", s.handleStatus)
	mux.HandleFunc("GET /market-hours/today", s.handleToday)
	mux.HandleFunc("GET /market-hours/date/{date}", s.handleDate)
	mux.HandleFunc("GET /market-hours/week", s.handleWeek)
	mux.HandleFunc("GET /market-hours/next", s.handleNext)
	mux.HandleFunc("GET /market-hours/holidays", s.handleHolidays)
	mux.HandleFunc("GET /refresh/last", s.handleLastRefresh)
	mux.HandleFunc("POST /refresh", s.handleTriggerRefresh)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.cal.Snapshot()
	writeJSON(w, healthResponse{
		Status:   "ok",
		Holidays: snap.Len(),
		LoadedAt: snap.LoadedAt(),
	})
}

// handleStatus classifies the current instant, or ?at=RFC3339.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	at := s.now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "at must be RFC 3339, e.g. 2026-07-03T17:30:00Z")
			return
		}
		at = parsed
	}

	state, err := calendar.Classify(at, s.cal.Snapshot())
	if err != nil {
		s.writeCalendarError(w, err)
		return
	}
	writeJSON(w, newStatusResponse(at, state))
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	day, err := calendar.ScheduleFor(s.now(), s.cal.Snapshot())
	if err != nil {
		s.writeCalendarError(w, err)
		return
	}
	writeJSON(w, newDayResponse(day))
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request) {
	loc, err := time.LoadLocation(calendar.ExchangeTimeZone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "exchange time zone unavailable")
		return
	}
	date, err := time.ParseInLocation("2006-01-02", r.PathValue("date"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	// Noon avoids any DST edge at midnight.
	day, err := calendar.ScheduleFor(date.Add(12*time.Hour), s.cal.Snapshot())
	if err != nil {
		s.writeCalendarError(w, err)
		return
	}
	writeJSON(w, newDayResponse(day))
}

func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	days, err := calendar.WeekSchedule(s.now(), s.cal.Snapshot())
	if err != nil {
		s.writeCalendarError(w, err)
		return
	}

	out := weekResponse{Days: make([]dayResponse, 0, len(days))}
	for _, d := range days {
		out.Days = append(out.Days, newDayResponse(d))
	}
	if len(out.Days) > 0 {
		out.Start = out.Days[0].Date
	}
	writeJSON(w, out)
}

// handleNext returns the next session boundary: ?direction=next_open
// (default) or next_close.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	dir := domain.NextOpen
	switch raw := r.URL.Query().Get("direction"); raw {
	case "", string(domain.NextOpen):
	case string(domain.NextClose):
		dir = domain.NextClose
	default:
		writeError(w, http.StatusBadRequest, "direction must be next_open or next_close")
		return
	}

	at, err := calendar.NextBoundary(s.now(), dir, s.cal.Snapshot())
	if err != nil {
		s.writeCalendarError(w, err)
		return
	}
	writeJSON(w, boundaryResponse{Direction: string(dir), At: at})
}

// handleHolidays lists stored holiday rows: ?start=YYYY-MM-DD&end=YYYY-MM-DD,
// defaulting to the current calendar year.
func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	year := s.now().UTC().Year()
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" {
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	if end == "" {
		end = time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	for _, bound := range []string{start, end} {
		if _, err := time.Parse("2006-01-02", bound); err != nil {
			writeError(w, http.StatusBadRequest, "start and end must be YYYY-MM-DD")
			return
		}
	}

	rows := s.cal.Snapshot().Range(start, end)
	out := make([]holidayResponse, 0, len(rows))
	for _, h := range rows {
		out = append(out, newHolidayResponse(h))
	}
	writeJSON(w, out)
}

func (s *Server) handleLastRefresh(w http.ResponseWriter, r *http.Request) {
	rec, err := s.reflog.LastRefresh(r.Context())
	if err != nil {
		s.log.Error("reading refresh log", "error", err)
		writeError(w, http.StatusInternalServerError, "reading refresh log")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "no refresh has run yet")
		return
	}
	writeJSON(w, newRefreshResponse(*rec))
}

func (s *Server) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh pipeline disabled")
		return
	}

	rec, err := s.trigger.TriggerNow(r.Context())
	switch {
	case errors.Is(err, refresh.ErrInFlight):
		writeError(w, http.StatusConflict, "a refresh cycle is already running")
	case err != nil:
		// The failure is recorded; hand the audit row back with a 502 so
		// the caller sees both the outcome and the cause.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(newRefreshResponse(rec))
	default:
		writeJSON(w, newRefreshResponse(rec))
	}
}

// writeCalendarError maps query-path calendar errors onto HTTP statuses.
func (s *Server) writeCalendarError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calendar.ErrInvalidInstant):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, calendar.ErrNoUpcomingSession):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.log.Error("calendar query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
