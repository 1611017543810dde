package ledger

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/metergrid/metergrid/internal/domain"
)

func testProfile(id string) domain.UserProfile {
	return domain.UserProfile{
		UserID:       id,
		Username:     "alice",
		MeterID:      "MTR-001",
		DwellingType: "apartment",
		Region:       "north",
		Area:         "riverside",
	}
}

func readingAt(ts string, v float64) domain.Reading {
	t, err := time.Parse(domain.TimeLayout, ts)
	if err != nil {
		panic(err)
	}
	return domain.Reading{Time: t, Value: v}
}

func TestLoadMissingFileIsEmptyMapping(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "electricity_record.json"))

	entries, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d, want 0", len(entries))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "electricity_record.json"))

	entries := map[string]*Entry{}
	MergeUser(entries, "u-1", testProfile("u-1"), []domain.Reading{
		readingAt("2024-03-01 01:00:00", 100),
		readingAt("2024-03-01 01:30:00", 101.5),
	})

	if err := l.Save(entries); err != nil {
		t.Fatalf("save: %v", err)
	}

	back, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e, ok := back["u-1"]
	if !ok {
		t.Fatal("u-1 missing after reload")
	}
	if e.UserInfo != testProfile("u-1") {
		t.Errorf("user_info = %+v", e.UserInfo)
	}
	if len(e.MeterReadings) != 2 || e.MeterReadings[1].Value != 101.5 {
		t.Errorf("meter_readings = %+v", e.MeterReadings)
	}
	if got := e.MeterReadings[0].Time.Format(domain.TimeLayout); got != "2024-03-01 01:00:00" {
		t.Errorf("timestamp = %q", got)
	}
}

// Consolidation is append-only: merged readings extend the existing sequence
// in order, with no reordering and no deduplication.
func TestMergeUserAppendOnly(t *testing.T) {
	entries := map[string]*Entry{}
	first := []domain.Reading{
		readingAt("2024-03-01 01:00:00", 100),
		readingAt("2024-03-01 01:30:00", 101),
	}
	MergeUser(entries, "u-1", testProfile("u-1"), first)

	second := []domain.Reading{
		readingAt("2024-03-01 02:00:00", 102),
		// Duplicate timestamp from a hypothetical bug: must pass through.
		readingAt("2024-03-01 02:00:00", 103),
	}
	MergeUser(entries, "u-1", testProfile("u-1"), second)

	got := entries["u-1"].MeterReadings
	if len(got) != 4 {
		t.Fatalf("readings = %d, want 4 (no dedup)", len(got))
	}
	want := append(append([]domain.Reading(nil), first...), second...)
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("readings[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestMergeUserDoesNotAliasCallerSlice(t *testing.T) {
	entries := map[string]*Entry{}
	src := []domain.Reading{readingAt("2024-03-01 01:00:00", 100)}
	MergeUser(entries, "u-1", testProfile("u-1"), src)

	src[0].Value = -1
	if entries["u-1"].MeterReadings[0].Value != 100 {
		t.Error("entry aliases the caller's slice")
	}
}

func TestSaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	l := New(filepath.Join(dir, "electricity_record.json"))

	entries := map[string]*Entry{}
	MergeUser(entries, "u-1", testProfile("u-1"), nil)
	if err := l.Save(entries); err != nil {
		t.Fatalf("first save: %v", err)
	}

	MergeUser(entries, "u-2", testProfile("u-2"), nil)
	if err := l.Save(entries); err != nil {
		t.Fatalf("second save: %v", err)
	}

	back, err := l.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(back) != 2 {
		t.Errorf("entries = %d, want 2", len(back))
	}

	// No temp files left behind.
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestLookup(t *testing.T) {
	entries := map[string]*Entry{}
	MergeUser(entries, "u-1", testProfile("u-1"), nil)

	if _, err := Lookup(entries, "u-9", "MTR-001"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown id: err = %v", err)
	}
	if _, err := Lookup(entries, "u-1", "MTR-999"); !errors.Is(err, domain.ErrMeterMismatch) {
		t.Errorf("wrong meter: err = %v", err)
	}
	if _, err := Lookup(entries, "u-1", "MTR-001"); err != nil {
		t.Errorf("valid lookup: %v", err)
	}
}
