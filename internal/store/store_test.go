package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/metergrid/metergrid/internal/domain"
)

func testProfile() domain.UserProfile {
	return domain.UserProfile{
		Username:     "alice",
		MeterID:      "MTR-001",
		DwellingType: "apartment",
		Region:       "north",
		Area:         "riverside",
	}
}

func date(s string) time.Time {
	d, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRegisterAssignsFreshID(t *testing.T) {
	s := New(nil)

	p1, err := s.Register(testProfile())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	p2, err := s.Register(testProfile())
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if p1.UserID == "" || p2.UserID == "" {
		t.Fatal("empty user ID")
	}
	if p1.UserID == p2.UserID {
		t.Fatalf("duplicate user ID %q", p1.UserID)
	}

	got, err := s.Profile(p1.UserID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if got != p1 {
		t.Errorf("profile = %+v, want %+v", got, p1)
	}
}

func TestRegisterRequiresAllFields(t *testing.T) {
	s := New(nil)

	p := testProfile()
	p.Area = ""
	if _, err := s.Register(p); !errors.Is(err, domain.ErrAllFieldsRequired) {
		t.Errorf("err = %v, want ErrAllFieldsRequired", err)
	}
	if s.Count() != 0 {
		t.Errorf("count = %d after rejected registration", s.Count())
	}
}

func TestProfileUnknownID(t *testing.T) {
	s := New(nil)
	if _, err := s.Profile("nope"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("err = %v, want ErrUserNotFound", err)
	}
}

func TestAppendReadingSlots(t *testing.T) {
	s := New(nil)
	p, _ := s.Register(testProfile())
	d := date("2024-03-01")

	wantTimes := []string{
		"2024-03-01 01:00:00",
		"2024-03-01 01:30:00",
		"2024-03-01 02:00:00",
	}
	for i, want := range wantTimes {
		r, err := s.AppendReading(p.UserID, p.MeterID, d, float64(10+i))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if got := r.Time.Format(domain.TimeLayout); got != want {
			t.Errorf("reading %d at %q, want %q", i, got, want)
		}
	}

	daily, err := s.DailyReadings(p.UserID, d)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(daily) != 3 {
		t.Fatalf("daily readings = %d, want 3", len(daily))
	}
	for i, r := range daily {
		if r.Value != float64(10+i) {
			t.Errorf("daily[%d].Value = %g, want %d", i, r.Value, 10+i)
		}
	}
}

func TestAppendReadingGuards(t *testing.T) {
	s := New(nil)
	p, _ := s.Register(testProfile())
	d := date("2024-03-01")

	if _, err := s.AppendReading("missing", p.MeterID, d, 1); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("unknown id: err = %v, want ErrUserNotFound", err)
	}
	if _, err := s.AppendReading(p.UserID, "MTR-999", d, 1); !errors.Is(err, domain.ErrMeterMismatch) {
		t.Errorf("wrong meter: err = %v, want ErrMeterMismatch", err)
	}
	if s.mustPendingLen(p.UserID) != 0 {
		t.Error("rejected submissions must not append")
	}
}

func TestAppendReadingDayCapacity(t *testing.T) {
	s := New(nil)
	p, _ := s.Register(testProfile())
	d := date("2024-03-01")

	for i := 0; i < domain.SlotsPerDay; i++ {
		if _, err := s.AppendReading(p.UserID, p.MeterID, d, float64(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	if _, err := s.AppendReading(p.UserID, p.MeterID, d, 99); !errors.Is(err, domain.ErrDayComplete) {
		t.Errorf("47th submission: err = %v, want ErrDayComplete", err)
	}
}

// Concurrent submissions for the same user must serialize on the per-user
// lock: every accepted reading lands on its own slot, strictly increasing.
func TestAppendReadingConcurrentSameUser(t *testing.T) {
	s := New(nil)
	p, _ := s.Register(testProfile())
	d := date("2024-03-01")

	const n = 40
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(v int) {
			defer wg.Done()
			if _, err := s.AppendReading(p.UserID, p.MeterID, d, float64(v)); err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	daily, err := s.DailyReadings(p.UserID, d)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(daily) != n {
		t.Fatalf("got %d readings, want %d", len(daily), n)
	}
	for i := 1; i < len(daily); i++ {
		diff := daily[i].Time.Sub(daily[i-1].Time)
		if diff != domain.SlotInterval {
			t.Fatalf("slot %d gap = %s, want 30m", i, diff)
		}
	}
}

func TestLatestReading(t *testing.T) {
	s := New(nil)
	p, _ := s.Register(testProfile())

	if _, ok, err := s.LatestReading(p.UserID); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	s.AppendReading(p.UserID, p.MeterID, date("2024-03-01"), 10)
	s.AppendReading(p.UserID, p.MeterID, date("2024-03-01"), 12)

	r, ok, err := s.LatestReading(p.UserID)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if r.Value != 12 {
		t.Errorf("latest value = %g, want 12", r.Value)
	}
}

func TestSnapshotAndClearPending(t *testing.T) {
	s := New(nil)
	p, _ := s.Register(testProfile())
	d := date("2024-03-01")
	s.AppendReading(p.UserID, p.MeterID, d, 10)
	s.AppendReading(p.UserID, p.MeterID, d, 12)

	snap := s.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot users = %d, want 1", len(snap))
	}
	if got := len(snap[p.UserID].Readings); got != 2 {
		t.Fatalf("snapshot readings = %d, want 2", got)
	}

	// Snapshot is a copy: mutating it must not touch the store.
	snap[p.UserID].Readings[0].Value = -1
	daily, _ := s.DailyReadings(p.UserID, d)
	if daily[0].Value != 10 {
		t.Error("snapshot aliases store state")
	}

	s.ClearPending()
	daily, _ = s.DailyReadings(p.UserID, d)
	if len(daily) != 0 {
		t.Errorf("pending not cleared: %d readings remain", len(daily))
	}
	if _, err := s.Profile(p.UserID); err != nil {
		t.Errorf("profile lost on clear: %v", err)
	}
}

// mustPendingLen is a test helper peeking at the pending sequence length.
func (s *Store) mustPendingLen(id string) int {
	s.mu.RLock()
	e := s.users[id]
	s.mu.RUnlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
