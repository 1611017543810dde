package domain

import "time"

// ─── Slot Policy ────────────────────────────────────────────────────────────
// Readings land on a fixed half-hour grid: 01:00, 01:30, …, 23:30 — 46 slots
// per calendar day. The submitted value never carries its own timestamp; the
// slot is derived from the caller's prior readings, so a user's sequence is
// strictly ordered with no gaps. A rejected submission does not consume a
// slot.
//
// This is pure policy: no state beyond the sequence passed in.

const (
	// SlotInterval is the spacing between consecutive reading slots.
	SlotInterval = 30 * time.Minute

	// SlotsPerDay is the number of slots in one day (01:00 through 23:30).
	SlotsPerDay = 46
)

// FirstSlot returns the first reading slot of the given calendar date (01:00).
func FirstSlot(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 1, 0, 0, 0, date.Location())
}

// LastSlot returns the final reading slot of the given calendar date (23:30).
func LastSlot(date time.Time) time.Time {
	return FirstSlot(date).Add(time.Duration(SlotsPerDay-1) * SlotInterval)
}

// NextSlot computes the timestamp the next reading will be recorded at, given
// the user's current pending sequence and the submission date.
//
// An empty sequence starts the day at 01:00. Otherwise the next slot is the
// last recorded timestamp plus 30 minutes, wherever that lands — submissions
// resume from the true last slot even if the last reading was on an earlier
// date. Once the next slot would pass the date's 23:30 boundary the day is
// full and ErrDayComplete is returned.
func NextSlot(pending []Reading, date time.Time) (time.Time, error) {
	var next time.Time
	if len(pending) == 0 {
		next = FirstSlot(date)
	} else {
		next = pending[len(pending)-1].Time.Add(SlotInterval)
	}
	if next.After(LastSlot(date)) {
		return time.Time{}, ErrDayComplete
	}
	return next, nil
}
