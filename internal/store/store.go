// Package store holds the in-memory reading store: every registered user's
// profile plus the readings accumulated since the last consolidation.
//
// Locking discipline: the store-level RWMutex guards the user map; each user
// carries its own mutex held for the whole read-last-slot-then-append critical
// section, so two in-flight submissions for the same user serialize instead of
// racing on the last timestamp. Cross-user operations run fully in parallel.
package store

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/metergrid/metergrid/internal/domain"
	"github.com/metergrid/metergrid/internal/infra/observability"
)

// AuditSink receives one entry per REGISTER / UPLOAD_READING event.
type AuditSink interface {
	Record(action string, p domain.UserProfile, message string) error
}

// Action kinds passed to the audit sink.
const (
	actionRegister      = "REGISTER"
	actionUploadReading = "UPLOAD_READING"
)

// Store is the shared in-memory reading store.
type Store struct {
	mu    sync.RWMutex
	users map[string]*userEntry
	audit AuditSink
}

type userEntry struct {
	mu      sync.Mutex
	profile domain.UserProfile
	pending []domain.Reading
}

// New creates an empty store. audit may be nil (no audit trail).
func New(audit AuditSink) *Store {
	return &Store{
		users: make(map[string]*userEntry),
		audit: audit,
	}
}

// ─── Registration ───────────────────────────────────────────────────────────

// Register creates a user with a fresh identifier and an empty pending
// sequence, and returns the stored profile. The UserID field of the input is
// ignored.
func (s *Store) Register(p domain.UserProfile) (domain.UserProfile, error) {
	if err := p.Validate(); err != nil {
		return domain.UserProfile{}, err
	}

	s.mu.Lock()
	// UUIDv4 collisions are negligible, but the identifier is the ledger
	// key, so detect and retry rather than assume.
	id := uuid.NewString()
	for {
		if _, exists := s.users[id]; !exists {
			break
		}
		id = uuid.NewString()
	}
	p.UserID = id
	s.users[id] = &userEntry{profile: p}
	s.mu.Unlock()

	observability.UsersRegistered.Inc()
	s.recordAudit(actionRegister, p,
		fmt.Sprintf("Registered user %s with meter %s", p.Username, p.MeterID))

	return p, nil
}

// Profile returns the profile for id.
func (s *Store) Profile(id string) (domain.UserProfile, error) {
	s.mu.RLock()
	e, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return domain.UserProfile{}, domain.ErrUserNotFound
	}
	return e.profile, nil
}

// Count returns the number of registered users.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// ─── Reading Ingestion ──────────────────────────────────────────────────────

// AppendReading records a reading for the user at the next slot of date.
// The meter ID must match the registered profile — a guard against mistyped
// IDs, not an auth boundary. Returns the recorded reading.
func (s *Store) AppendReading(id, meterID string, date time.Time, value float64) (domain.Reading, error) {
	s.mu.RLock()
	e, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		observability.ReadingsRejected.WithLabelValues("not_found").Inc()
		return domain.Reading{}, domain.ErrUserNotFound
	}
	if e.profile.MeterID != meterID {
		observability.ReadingsRejected.WithLabelValues("meter_mismatch").Inc()
		return domain.Reading{}, domain.ErrMeterMismatch
	}

	e.mu.Lock()
	slot, err := domain.NextSlot(e.pending, date)
	if err != nil {
		e.mu.Unlock()
		observability.ReadingsRejected.WithLabelValues("day_complete").Inc()
		return domain.Reading{}, err
	}
	r := domain.Reading{Time: slot, Value: value}
	e.pending = append(e.pending, r)
	e.mu.Unlock()

	observability.ReadingsAccepted.Inc()
	observability.PendingReadings.Inc()
	s.recordAudit(actionUploadReading, e.profile,
		fmt.Sprintf("Uploaded reading %g at %s", value, slot.Format(domain.TimeLayout)))

	return r, nil
}

// DailyReadings returns the user's pending readings for the given calendar
// date, in chronological order. Empty slice if none.
func (s *Store) DailyReadings(id string, date time.Time) ([]domain.Reading, error) {
	s.mu.RLock()
	e, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrUserNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Reading
	for _, r := range e.pending {
		if r.OnDate(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FirstReading returns the oldest pending reading, if any.
func (s *Store) FirstReading(id string) (domain.Reading, bool, error) {
	s.mu.RLock()
	e, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Reading{}, false, domain.ErrUserNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return domain.Reading{}, false, nil
	}
	return e.pending[0], true, nil
}

// LatestReading returns the most recent pending reading, if any.
func (s *Store) LatestReading(id string) (domain.Reading, bool, error) {
	s.mu.RLock()
	e, ok := s.users[id]
	s.mu.RUnlock()
	if !ok {
		return domain.Reading{}, false, domain.ErrUserNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return domain.Reading{}, false, nil
	}
	return e.pending[len(e.pending)-1], true, nil
}

// ─── Consolidation Support ──────────────────────────────────────────────────

// PendingUser is one user's snapshot handed to the consolidator.
type PendingUser struct {
	Profile  domain.UserProfile
	Readings []domain.Reading
}

// Snapshot returns a copy of every user's profile and pending sequence.
// Taken with the drain gate closed, so no appends race the copy.
func (s *Store) Snapshot() map[string]PendingUser {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]PendingUser, len(s.users))
	for id, e := range s.users {
		e.mu.Lock()
		readings := make([]domain.Reading, len(e.pending))
		copy(readings, e.pending)
		e.mu.Unlock()
		out[id] = PendingUser{Profile: e.profile, Readings: readings}
	}
	return out
}

// ClearPending resets every user's pending sequence. Called only after the
// consolidator has confirmed a durable save — this is the point where data
// ownership transfers from "pending" to "ledgered".
func (s *Store) ClearPending() {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.users {
		e.mu.Lock()
		e.pending = nil
		e.mu.Unlock()
	}
	observability.PendingReadings.Set(0)
}

// recordAudit writes to the sink, if configured. Audit failures are logged,
// never surfaced: the mutation already happened.
func (s *Store) recordAudit(action string, p domain.UserProfile, message string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(action, p, message); err != nil {
		log.Printf("[store] audit record failed: %v", err)
	}
}
