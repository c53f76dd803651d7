package httpapi

import (
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/calendar"
	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// statusResponse answers "is the market open at this instant".
type statusResponse struct {
	AsOf     time.Time `json:"as_of"`
	Status   string    `json:"status"`
	IsOpen   bool      `json:"is_open"`
	Reason   string    `json:"reason,omitempty"`
	ClosedAt string    `json:"closed_at,omitempty"` // "HH:MM" ET, early closes only
}

func newStatusResponse(asOf time.Time, state domain.SessionState) statusResponse {
	out := statusResponse{
		AsOf:   asOf,
		Status: string(state.Status),
		IsOpen: state.IsOpen(),
		Reason: state.Reason,
	}
	if state.Status == domain.StatusEarlyClose {
		out.ClosedAt = state.ClosedAt.String()
	}
	return out
}

// dayResponse is one exchange-local date's schedule.
type dayResponse struct {
	Date        string `json:"date"`
	IsOpen      bool   `json:"is_open"`
	Open        string `json:"open,omitempty"`  // "HH:MM" ET
	Close       string `json:"close,omitempty"` // "HH:MM" ET
	EarlyClose  bool   `json:"early_close"`
	HolidayName string `json:"holiday_name,omitempty"`
	Notes       string `json:"notes"`
}

func newDayResponse(d calendar.DaySchedule) dayResponse {
	out := dayResponse{
		Date:        d.Date,
		IsOpen:      d.IsOpen,
		EarlyClose:  d.EarlyClose,
		HolidayName: d.HolidayName,
		Notes:       d.Notes,
	}
	if d.IsOpen {
		out.Open = d.Open.String()
		out.Close = d.Close.String()
	}
	return out
}

// weekResponse is seven consecutive day schedules.
type weekResponse struct {
	Start string        `json:"start"`
	Days  []dayResponse `json:"days"`
}

// boundaryResponse is the next session transition.
type boundaryResponse struct {
	Direction string    `json:"direction"`
	At        time.Time `json:"at"`
}

// holidayResponse is one stored holiday row.
type holidayResponse struct {
	Date    string `json:"date"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	CloseAt string `json:"close_at,omitempty"` // early closes only
}

func newHolidayResponse(h domain.Holiday) holidayResponse {
	out := holidayResponse{
		Date: h.Date,
		Name: h.Name,
		Kind: string(h.Kind),
	}
	if h.Kind == domain.EarlyClose {
		out.CloseAt = h.CloseAt.String()
	}
	return out
}

// refreshResponse is one refresh audit record.
type refreshResponse struct {
	RunAt           time.Time `json:"run_at"`
	Status          string    `json:"status"`
	Source          string    `json:"source"`
	RecordsIngested int       `json:"records_ingested"`
	Error           string    `json:"error,omitempty"`
}

func newRefreshResponse(rec domain.RefreshRecord) refreshResponse {
	return refreshResponse{
		RunAt:           rec.RunAt,
		Status:          string(rec.Status),
		Source:          rec.Source,
		RecordsIngested: rec.RecordsIngested,
		Error:           rec.Error,
	}
}

// healthResponse reports service liveness and calendar freshness.
type healthResponse struct {
	Status   string    `json:"status"`
	Holidays int       `json:"holidays"`
	LoadedAt time.Time `json:"loaded_at,omitzero"`
}
