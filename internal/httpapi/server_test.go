package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/calendar"
	"github.com/kdeosingh/us-market-hours-api/internal/domain"
	"github.com/kdeosingh/us-market-hours-api/internal/refresh"
)

type fakeRefreshLog struct {
	rec *domain.RefreshRecord
	err error
}

func (f *fakeRefreshLog) AppendRefresh(ctx context.Context, rec domain.RefreshRecord) error {
	f.rec = &rec
	return nil
}

func (f *fakeRefreshLog) LastRefresh(ctx context.Context) (*domain.RefreshRecord, error) {
	return f.rec, f.err
}

type fakeTrigger struct {
	rec domain.RefreshRecord
	err error
}

func (f *fakeTrigger) TriggerNow(ctx context.Context) (domain.RefreshRecord, error) {
	return f.rec, f.err
}

func testCalendar() *calendar.Calendar {
	cal := calendar.New()
	cal.Publish(calendar.NewSnapshot([]domain.Holiday{
		{Date: "2026-07-03", Name: "Independence Day", Kind: domain.FullClosure},
		{Date: "2026-11-27", Name: "Day after Thanksgiving", Kind: domain.EarlyClose, CloseAt: domain.EarlyCloseTime},
		{Date: "2026-12-25", Name: "Christmas Day", Kind: domain.FullClosure},
	}, time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)))
	return cal
}

func newTestServer(t *testing.T, reflog *fakeRefreshLog, trigger RefreshTrigger) *Server {
	t.Helper()
	if reflog == nil {
		reflog = &fakeRefreshLog{}
	}
	s := NewServer(testCalendar(), reflog, trigger, slog.New(slog.NewTextHandler(io.Discard, nil)))
	// A regular open Wednesday, 12:00 ET.
	s.now = func() time.Time { return time.Date(2026, 6, 10, 16, 0, 0, 0, time.UTC) }
	return s
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding body %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil, nil), http.MethodGet, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[healthResponse](t, rr)
	if got.Status != "ok" || got.Holidays != 3 {
		t.Errorf("health = %+v", got)
	}
}

func TestStatusNow(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil, nil), http.MethodGet, "/market-hours/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[statusResponse](t, rr)
	if got.Status != string(domain.StatusOpen) || !got.IsOpen {
		t.Errorf("midday Wednesday = %+v, want OPEN", got)
	}
}

func TestStatusAtParam(t *testing.T) {
	s := newTestServer(t, nil, nil)

	// 18:30 UTC on the early-close Friday is 13:30 EST, after the 13:00 close.
	rr := doRequest(t, s, http.MethodGet, "/market-hours/status?at=2026-11-27T18:30:00Z")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[statusResponse](t, rr)
	if got.Status != string(domain.StatusEarlyClose) {
		t.Errorf("status = %+v, want CLOSED_EARLY", got)
	}
	if got.ClosedAt != "13:00" || got.Reason == "" {
		t.Errorf("early close detail missing: %+v", got)
	}
}

func TestStatusBadAtParam(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil, nil), http.MethodGet, "/market-hours/status?at=yesterday")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestToday(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil, nil), http.MethodGet, "/market-hours/today")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[dayResponse](t, rr)
	if got.Date != "2026-06-10" || !got.IsOpen || got.Open != "09:30" || got.Close != "16:00" {
		t.Errorf("today = %+v", got)
	}
}

func TestDate(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr := doRequest(t, s, http.MethodGet, "/market-hours/date/2026-12-25")
	got := decode[dayResponse](t, rr)
	if got.IsOpen || got.HolidayName != "Christmas Day" {
		t.Errorf("Christmas = %+v", got)
	}

	rr = doRequest(t, s, http.MethodGet, "/market-hours/date/2026-11-27")
	got = decode[dayResponse](t, rr)
	if !got.IsOpen || !got.EarlyClose || got.Close != "13:00" {
		t.Errorf("early close day = %+v", got)
	}

	rr = doRequest(t, s, http.MethodGet, "/market-hours/date/christmas")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rr.Code)
	}
}

func TestWeek(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil, nil), http.MethodGet, "/market-hours/week")
	got := decode[weekResponse](t, rr)
	if len(got.Days) != 7 {
		t.Fatalf("week has %d days", len(got.Days))
	}
	if got.Start != "2026-06-10" || got.Days[0].Date != got.Start {
		t.Errorf("week start = %q", got.Start)
	}
	weekendClosed := 0
	for _, d := range got.Days {
		if d.Notes == "Weekend" && !d.IsOpen {
			weekendClosed++
		}
	}
	if weekendClosed != 2 {
		t.Errorf("weekend days = %d, want 2", weekendClosed)
	}
}

func TestNext(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr := doRequest(t, s, http.MethodGet, "/market-hours/next?direction=next_close")
	got := decode[boundaryResponse](t, rr)
	// 12:00 ET on an open day closes the same day 16:00 ET (20:00 UTC).
	want := time.Date(2026, 6, 10, 20, 0, 0, 0, time.UTC)
	if !got.At.Equal(want) {
		t.Errorf("next close = %v, want %v", got.At, want)
	}

	rr = doRequest(t, s, http.MethodGet, "/market-hours/next?direction=sideways")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", rr.Code)
	}
}

func TestHolidays(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rr := doRequest(t, s, http.MethodGet, "/market-hours/holidays")
	got := decode[[]holidayResponse](t, rr)
	if len(got) != 3 {
		t.Fatalf("year holidays = %d, want 3", len(got))
	}

	rr = doRequest(t, s, http.MethodGet, "/market-hours/holidays?start=2026-07-01&end=2026-07-31")
	got = decode[[]holidayResponse](t, rr)
	if len(got) != 1 || got[0].Date != "2026-07-03" {
		t.Errorf("July holidays = %+v", got)
	}

	rr = doRequest(t, s, http.MethodGet, "/market-hours/holidays?start=july")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad bound status = %d, want 400", rr.Code)
	}
}

func TestLastRefresh(t *testing.T) {
	reflog := &fakeRefreshLog{}
	s := newTestServer(t, reflog, nil)

	rr := doRequest(t, s, http.MethodGet, "/refresh/last")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("empty log status = %d, want 404", rr.Code)
	}

	reflog.rec = &domain.RefreshRecord{
		RunAt:           time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC),
		Status:          domain.RefreshSuccess,
		Source:          "alpaca",
		RecordsIngested: 13,
	}
	rr = doRequest(t, s, http.MethodGet, "/refresh/last")
	got := decode[refreshResponse](t, rr)
	if got.Status != "success" || got.RecordsIngested != 13 {
		t.Errorf("last refresh = %+v", got)
	}
}

func TestTriggerRefresh(t *testing.T) {
	ok := &fakeTrigger{rec: domain.RefreshRecord{Status: domain.RefreshSuccess, Source: "alpaca", RecordsIngested: 13}}
	rr := doRequest(t, newTestServer(t, nil, ok), http.MethodPost, "/refresh")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	busy := &fakeTrigger{err: refresh.ErrInFlight}
	rr = doRequest(t, newTestServer(t, nil, busy), http.MethodPost, "/refresh")
	if rr.Code != http.StatusConflict {
		t.Errorf("in-flight status = %d, want 409", rr.Code)
	}

	failed := &fakeTrigger{
		rec: domain.RefreshRecord{Status: domain.RefreshFailure, Source: "alpaca", Error: "upstream down"},
		err: errors.New("upstream down"),
	}
	rr = doRequest(t, newTestServer(t, nil, failed), http.MethodPost, "/refresh")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("failed cycle status = %d, want 502", rr.Code)
	}
	got := decode[refreshResponse](t, rr)
	if got.Status != "failure" || got.Error == "" {
		t.Errorf("failed cycle body = %+v", got)
	}

	rr = doRequest(t, newTestServer(t, nil, nil), http.MethodPost, "/refresh")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("disabled status = %d, want 503", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil, nil), http.MethodOptions, "/market-hours/status")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
