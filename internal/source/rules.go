package source

import (
	"context"
	"sort"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// Compile-time interface check.
var _ ScheduleSource = (*RuleSource)(nil)

// RuleSource derives the NYSE schedule locally from observance rules: the
// exchange's nine-plus holidays via rickar/cal and the customary
// early-close days. It needs no network access, which makes it both the
// offline fallback source and the naming oracle for sources (like Alpaca)
// that publish closure dates without names.
type RuleSource struct {
	cal *cal.BusinessCalendar
}

// NewRuleSource builds the NYSE observance calendar.
func NewRuleSource() *RuleSource {
	c := cal.NewBusinessCalendar()
	c.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.PresidentsDay,
		aa.GoodFriday,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	return &RuleSource{cal: c}
}

// Name identifies the source in logs and refresh records.
func (s *RuleSource) Name() string { return "rules" }

// FetchSchedule walks every date of the year range and emits observed full
// closures plus rule-based early closes. At most one row per date; full
// closures win over early-close labels (e.g. Christmas 2027 observed on
// Dec 24 suppresses the Christmas Eve half day).
func (s *RuleSource) FetchSchedule(ctx context.Context, startYear, endYear int) ([]domain.Holiday, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Source: s.Name(), Err: err}
	}

	byDate := make(map[string]domain.Holiday)

	for year := startYear; year <= endYear; year++ {
		day := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		for day.Year() == year {
			if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
				if _, observed, h := s.cal.IsHoliday(day); observed && h != nil {
					byDate[day.Format("2006-01-02")] = domain.Holiday{
						Date: day.Format("2006-01-02"),
						Name: h.Name,
						Kind: domain.FullClosure,
					}
				}
			}
			day = day.AddDate(0, 0, 1)
		}

		for _, ec := range s.earlyCloses(year) {
			if _, taken := byDate[ec.Date]; taken {
				continue
			}
			byDate[ec.Date] = ec
		}
	}

	out := make([]domain.Holiday, 0, len(byDate))
	for _, h := range byDate {
		out = append(out, h)
	}
	sortByDate(out)
	return out, nil
}

// earlyCloses returns the customary NYSE half days for one year, before
// full-closure dedup: the day before Independence Day, the day after
// Thanksgiving, and Christmas Eve, each only when it lands on a weekday.
func (s *RuleSource) earlyCloses(year int) []domain.Holiday {
	var out []domain.Holiday

	add := func(d time.Time, name string) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return
		}
		out = append(out, domain.Holiday{
			Date:    d.Format("2006-01-02"),
			Name:    name,
			Kind:    domain.EarlyClose,
			CloseAt: domain.EarlyCloseTime,
		})
	}

	add(time.Date(year, time.July, 3, 0, 0, 0, 0, time.UTC), "Independence Day Eve")
	add(dayAfterThanksgiving(year), "Day after Thanksgiving")
	add(time.Date(year, time.December, 24, 0, 0, 0, 0, time.UTC), "Christmas Eve")

	return out
}

// NameClosure returns a human-readable label for a full closure on the
// given date, using the observance rules. Unknown closures get a generic
// label rather than an empty string.
func (s *RuleSource) NameClosure(date time.Time) string {
	if _, observed, h := s.cal.IsHoliday(date); observed && h != nil {
		return h.Name
	}
	return "Market Holiday"
}

// NameEarlyClose labels an early-close date.
func (s *RuleSource) NameEarlyClose(date time.Time) string {
	switch {
	case date.Month() == time.July && date.Day() == 3:
		return "Independence Day Eve"
	case date.Month() == time.December && date.Day() == 24:
		return "Christmas Eve"
	case date.Format("2006-01-02") == dayAfterThanksgiving(date.Year()).Format("2006-01-02"):
		return "Day after Thanksgiving"
	default:
		return "Early Close"
	}
}

// dayAfterThanksgiving returns the Friday after the fourth Thursday of
// November, midnight UTC.
func dayAfterThanksgiving(year int) time.Time {
	d := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Thursday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 3*7+1)
}

func sortByDate(hs []domain.Holiday) {
	sort.Slice(hs, func(i, j int) bool { return hs[i].Date < hs[j].Date })
}
