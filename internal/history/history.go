// Package history answers queries over the consolidated ledger: per-date
// usage and the whole-history consumption series the front end charts.
package history

import (
	"sort"
	"time"

	"github.com/metergrid/metergrid/internal/domain"
	"github.com/metergrid/metergrid/internal/ledger"
)

// Service reads the ledger on every query. The ledger file is replaced
// atomically by the consolidator, so a query observes either the previous or
// the new epoch, never a partial write.
type Service struct {
	ledger *ledger.Ledger
}

// New creates a history service over the given ledger.
func New(led *ledger.Ledger) *Service {
	return &Service{ledger: led}
}

// DailyUsage is one date's consumption summary. Usage is the difference
// between the day's closing (23:30) and opening (01:00) readings.
type DailyUsage struct {
	Date        string  `json:"date"`
	Reading0100 float64 `json:"reading_0100"`
	Reading2330 float64 `json:"reading_2330"`
	TotalUsage  float64 `json:"total_usage"`
}

// DailyUsageFor computes the usage summary for one user and date, along with
// the date's ledgered readings.
//
// Both boundary slots must be present: a day missing its 01:00 or 23:30
// reading reports ErrIncompleteData rather than a wrong number. A date with
// no readings at all reports ErrNoData.
func (s *Service) DailyUsageFor(userID, meterID string, date time.Time) (DailyUsage, []domain.Reading, error) {
	entries, err := s.ledger.Load()
	if err != nil {
		return DailyUsage{}, nil, err
	}
	e, err := ledger.Lookup(entries, userID, meterID)
	if err != nil {
		return DailyUsage{}, nil, err
	}

	var day []domain.Reading
	for _, r := range e.MeterReadings {
		if r.OnDate(date) {
			day = append(day, r)
		}
	}
	if len(day) == 0 {
		return DailyUsage{}, nil, domain.ErrNoData
	}

	open, openOK := readingAt(day, domain.FirstSlot(date))
	closing, closeOK := readingAt(day, domain.LastSlot(date))
	if !openOK || !closeOK {
		return DailyUsage{}, day, domain.ErrIncompleteData
	}

	return DailyUsage{
		Date:        date.Format(domain.DateLayout),
		Reading0100: open,
		Reading2330: closing,
		TotalUsage:  closing - open,
	}, day, nil
}

// ConsumptionSeries returns one DailyUsage row per ledgered date for the
// user, oldest first — the data behind the consumption chart. Each day uses
// its first and last recorded readings as the boundaries, so partial days
// still chart.
func (s *Service) ConsumptionSeries(userID, meterID string) ([]DailyUsage, error) {
	entries, err := s.ledger.Load()
	if err != nil {
		return nil, err
	}
	e, err := ledger.Lookup(entries, userID, meterID)
	if err != nil {
		return nil, err
	}
	if len(e.MeterReadings) == 0 {
		return nil, domain.ErrNoData
	}

	byDate := make(map[string][]domain.Reading)
	for _, r := range e.MeterReadings {
		d := r.Date()
		byDate[d] = append(byDate[d], r)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	series := make([]DailyUsage, 0, len(dates))
	for _, d := range dates {
		day := byDate[d]
		first, last := day[0].Value, day[len(day)-1].Value
		series = append(series, DailyUsage{
			Date:        d,
			Reading0100: first,
			Reading2330: last,
			TotalUsage:  last - first,
		})
	}
	return series, nil
}

// readingAt finds the reading recorded exactly at slot. A zero reading value
// still counts as present.
func readingAt(day []domain.Reading, slot time.Time) (float64, bool) {
	for _, r := range day {
		if r.Time.Equal(slot) {
			return r.Value, true
		}
	}
	return 0, false
}
