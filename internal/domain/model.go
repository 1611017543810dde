// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the application — it depends on nothing.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ─── Time Formats ───────────────────────────────────────────────────────────

// Timestamps cross the wire and the ledger file as plain strings.
const (
	// TimeLayout is the ledger timestamp format. Slots have minute
	// resolution; seconds are always written as ":00".
	TimeLayout = "2006-01-02 15:04:05"

	// DateLayout is the calendar-date format used by submission and query
	// requests.
	DateLayout = "2006-01-02"
)

// ParseDate parses a calendar date in DateLayout.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}

// ─── User Profile ───────────────────────────────────────────────────────────

// UserProfile describes a registered household. Immutable after creation:
// the store hands out copies, never pointers into its own state.
type UserProfile struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	MeterID      string `json:"meter_id"`
	DwellingType string `json:"dwelling_type"`
	Region       string `json:"region"`
	Area         string `json:"area"`
}

// Validate checks that every registration field is present.
func (p UserProfile) Validate() error {
	if p.Username == "" || p.MeterID == "" || p.DwellingType == "" ||
		p.Region == "" || p.Area == "" {
		return ErrAllFieldsRequired
	}
	return nil
}

// ─── Meter Readings ─────────────────────────────────────────────────────────

// Reading is a single cumulative meter reading recorded at a 30-minute slot
// boundary. Value is the raw meter counter, non-negative by convention and
// monotonically non-decreasing within a day — neither is enforced, the meter
// is the source of truth.
type Reading struct {
	Time  time.Time
	Value float64
}

// readingJSON is the ledger wire shape of a Reading.
type readingJSON struct {
	MeterUpdateTime string  `json:"meter_update_time"`
	Reading         float64 `json:"reading"`
}

// MarshalJSON writes the ledger wire shape:
// {"meter_update_time": "YYYY-MM-DD HH:MM:SS", "reading": N}.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		MeterUpdateTime: r.Time.Format(TimeLayout),
		Reading:         r.Value,
	})
}

// UnmarshalJSON parses the ledger wire shape.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var w readingJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := time.Parse(TimeLayout, w.MeterUpdateTime)
	if err != nil {
		return fmt.Errorf("parse meter_update_time %q: %w", w.MeterUpdateTime, err)
	}
	r.Time = t
	r.Value = w.Reading
	return nil
}

// Date returns the reading's calendar date in DateLayout.
func (r Reading) Date() string {
	return r.Time.Format(DateLayout)
}

// OnDate reports whether the reading falls on the given calendar date.
func (r Reading) OnDate(date time.Time) bool {
	y1, m1, d1 := r.Time.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
