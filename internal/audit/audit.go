// Package audit writes the append-only action log consumed by operators.
// Every REGISTER and UPLOAD_READING event produces one structured text line;
// the file is truncated after each successful consolidation, so retention
// spans exactly one consolidation epoch.
package audit

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/metergrid/metergrid/internal/domain"
)

// Action kinds recorded in the log.
const (
	ActionRegister      = "REGISTER"
	ActionUploadReading = "UPLOAD_READING"
)

// Log is a file-backed, append-only action log.
type Log struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a log writing to path. The file is created on first record.
func Open(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the log file path.
func (l *Log) Path() string { return l.path }

// Record appends one action line:
//
//	[TS] [ACTION] User ID: u, Meter ID: m, Username: n, Dwelling Type: d, Region: r, Area: a - message
func (l *Log) Record(action string, p domain.UserProfile, message string) error {
	line := fmt.Sprintf(
		"[%s] [%s] User ID: %s, Meter ID: %s, Username: %s, Dwelling Type: %s, Region: %s, Area: %s - %s\n",
		l.now().Format(domain.TimeLayout), action,
		p.UserID, p.MeterID, p.Username, p.DwellingType, p.Region, p.Area,
		message,
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append audit log: %w", err)
	}
	return nil
}

// Truncate resets the log to empty. Called after a confirmed consolidation.
func (l *Log) Truncate() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.WriteFile(l.path, nil, 0644); err != nil {
		return fmt.Errorf("truncate audit log: %w", err)
	}
	return nil
}
