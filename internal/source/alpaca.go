package source

import (
	"context"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"github.com/kdeosingh/us-market-hours-api/internal/domain"
)

// Compile-time interface check.
var _ ScheduleSource = (*AlpacaSource)(nil)

// calendarAPI is the slice of the Alpaca client the source needs; tests
// substitute a canned implementation.
type calendarAPI interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// AlpacaSource derives the holiday schedule from the Alpaca trading
// calendar API. Alpaca publishes the trading days with their session
// times; weekdays absent from that list are full closures, and days whose
// close is earlier than 16:00 are early closes. Alpaca does not name
// closures, so a RuleSource labels them.
type AlpacaSource struct {
	client calendarAPI
	namer  *RuleSource
}

// NewAlpacaSource builds a source talking to the Alpaca trading API with
// the given bounded request timeout.
func NewAlpacaSource(apiKey, apiSecret, baseURL string, timeout time.Duration) *AlpacaSource {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	})
	return &AlpacaSource{client: client, namer: NewRuleSource()}
}

// Name identifies the source in logs and refresh records.
func (s *AlpacaSource) Name() string { return "alpaca" }

// FetchSchedule pulls the trading calendar for the year range and converts
// it into holiday/early-close rows.
func (s *AlpacaSource) FetchSchedule(ctx context.Context, startYear, endYear int) ([]domain.Holiday, error) {
	if err := ctx.Err(); err != nil {
		return nil, &AcquisitionError{Source: s.Name(), Err: err}
	}

	days, err := s.client.GetCalendar(alpaca.GetCalendarRequest{
		Start: time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		return nil, &AcquisitionError{Source: s.Name(), Err: err}
	}

	return s.mapCalendarDays(days, startYear, endYear)
}

// mapCalendarDays inverts the trading-day list into the non-regular dates.
func (s *AlpacaSource) mapCalendarDays(days []alpaca.CalendarDay, startYear, endYear int) ([]domain.Holiday, error) {
	if len(days) == 0 {
		return nil, &ParseError{Source: s.Name(), Detail: "empty calendar response"}
	}

	trading := make(map[string]alpaca.CalendarDay, len(days))
	for _, d := range days {
		if _, err := time.Parse("2006-01-02", d.Date); err != nil {
			return nil, &ParseError{Source: s.Name(), Detail: "unrecognized calendar date", Err: err}
		}
		trading[d.Date] = d
	}

	var out []domain.Holiday
	day := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	for day.Year() <= endYear {
		date := day.Format("2006-01-02")
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			entry, isTrading := trading[date]
			switch {
			case !isTrading:
				out = append(out, domain.Holiday{
					Date: date,
					Name: s.namer.NameClosure(day),
					Kind: domain.FullClosure,
				})
			default:
				closeAt, err := domain.ParseTimeOfDay(entry.Close)
				if err != nil {
					return nil, &ParseError{Source: s.Name(), Detail: "unrecognized close time", Err: err}
				}
				if closeAt < domain.RegularClose {
					out = append(out, domain.Holiday{
						Date:    date,
						Name:    s.namer.NameEarlyClose(day),
						Kind:    domain.EarlyClose,
						CloseAt: closeAt,
					})
				}
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return out, nil
}
