package calendar

import (
	"time"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// DaySchedule summarises one exchange-local calendar date: whether the
// market opens, at which times, and why it is closed otherwise.
type DaySchedule struct {
	Date        string // "2006-01-02", exchange-local
	IsOpen      bool
	Open        domain.TimeOfDay // valid only when IsOpen
	Close       domain.TimeOfDay // valid only when IsOpen
	EarlyClose  bool
	HolidayName string // set for full closures and early closes
	Notes       string
}

// OpenAt returns the absolute open instant for the day, or the zero time
// for a closed day.
func (d DaySchedule) OpenAt() time.Time { return d.instantAt(d.Open) }

// CloseAt returns the absolute close instant for the day, or the zero
// time for a closed day.
func (d DaySchedule) CloseAt() time.Time { return d.instantAt(d.Close) }

func (d DaySchedule) instantAt(tod domain.TimeOfDay) time.Time {
	if !d.IsOpen {
		return time.Time{}
	}
	loc, err := exchangeLocation()
	if err != nil {
		return time.Time{}
	}
	date, err := time.ParseInLocation("2006-01-02", d.Date, loc)
	if err != nil {
		return time.Time{}
	}
	return tod.On(date, loc)
}

// ScheduleFor builds the schedule for the exchange-local date containing t.
func ScheduleFor(t time.Time, snap *Snapshot) (DaySchedule, error) {
	local, err := toExchangeLocal(t)
	if err != nil {
		return DaySchedule{}, err
	}

	date := local.Format("2006-01-02")
	out := DaySchedule{Date: date}

	if entry, ok := snap.Lookup(date); ok {
		switch entry.Kind {
		case domain.FullClosure:
			out.HolidayName = entry.Name
			out.Notes = "Market closed for " + entry.Name
			return out, nil
		case domain.EarlyClose:
			out.IsOpen = true
			out.Open = domain.RegularOpen
			out.Close = entry.CloseAt
			out.EarlyClose = true
			out.HolidayName = entry.Name
			out.Notes = entry.Name
			return out, nil
		}
	}

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		out.Notes = "Weekend"
		return out, nil
	}

	out.IsOpen = true
	out.Open = domain.RegularOpen
	out.Close = domain.RegularClose
	out.Notes = "Regular trading hours"
	return out, nil
}

// WeekSchedule builds seven consecutive day schedules starting at the
// exchange-local date containing start.
func WeekSchedule(start time.Time, snap *Snapshot) ([]DaySchedule, error) {
	local, err := toExchangeLocal(start)
	if err != nil {
		return nil, err
	}

	days := make([]DaySchedule, 0, 7)
	for i := 0; i < 7; i++ {
		d, err := ScheduleFor(local.AddDate(0, 0, i), snap)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}
