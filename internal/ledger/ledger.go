// Package ledger persists the durable historical record of all users'
// consolidated readings as a single JSON document keyed by user ID.
//
// The ledger is append-only per user: a consolidation only ever extends a
// user's reading sequence, never rewrites or reorders it.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metergrid/metergrid/internal/domain"
)

// Entry is one user's ledger record: a profile snapshot plus the full
// historical reading sequence in consolidation order.
type Entry struct {
	UserInfo      domain.UserProfile `json:"user_info"`
	MeterReadings []domain.Reading   `json:"meter_readings"`
}

// Ledger is a file-backed map of user ID → Entry.
type Ledger struct {
	path string
}

// New returns a ledger backed by the given file path.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Path returns the backing file path.
func (l *Ledger) Path() string { return l.path }

// Load reads the full ledger mapping. A missing file is the first run, not an
// error: it yields an empty mapping.
func (l *Ledger) Load() (map[string]*Entry, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return make(map[string]*Entry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	entries := make(map[string]*Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}
	return entries, nil
}

// MergeUser folds one user's new readings into the mapping. An existing entry
// is extended in order; a new one is created from the profile. No
// deduplication: duplicate timestamps caused by a programming error pass
// through rather than silently masking data loss.
func MergeUser(entries map[string]*Entry, id string, profile domain.UserProfile, readings []domain.Reading) {
	if e, ok := entries[id]; ok {
		e.MeterReadings = append(e.MeterReadings, readings...)
		return
	}
	entries[id] = &Entry{
		UserInfo:      profile,
		MeterReadings: append([]domain.Reading(nil), readings...),
	}
}

// Save atomically replaces the backing file with the full mapping: the
// document is written to a temp file in the same directory and renamed over
// the target, so a concurrent reader never observes a partial write.
func (l *Ledger) Save(entries map[string]*Entry) error {
	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create ledger temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger temp file: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// Lookup returns the entry for id, guarding the meter ID the same way the
// in-memory store does.
func Lookup(entries map[string]*Entry, id, meterID string) (*Entry, error) {
	e, ok := entries[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if e.UserInfo.MeterID != meterID {
		return nil, domain.ErrMeterMismatch
	}
	return e, nil
}
