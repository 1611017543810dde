// Package sqlite persists operational history that outlives the in-memory
// store: one row per consolidation run, for the admin surface and postmortems.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the operational history database.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and applies
// the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	db := &DB{db: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error { return db.db.Close() }

func (db *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS drain_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			users       INTEGER NOT NULL DEFAULT 0,
			readings    INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			success     INTEGER NOT NULL DEFAULT 0,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_drain_runs_started ON drain_runs(started_at)`,
	}
	for _, s := range stmts {
		if _, err := db.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// DrainRun is one recorded consolidation cycle.
type DrainRun struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Users      int
	Readings   int
	Duration   time.Duration
	Success    bool
	Error      string
}

// InsertDrainRun records a completed (or failed) consolidation cycle.
func (db *DB) InsertDrainRun(r DrainRun) (int64, error) {
	successInt := 0
	if r.Success {
		successInt = 1
	}
	res, err := db.db.Exec(`
		INSERT INTO drain_runs (started_at, finished_at, users, readings, duration_ms, success, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.StartedAt.Format(time.RFC3339), r.FinishedAt.Format(time.RFC3339),
		r.Users, r.Readings, r.Duration.Milliseconds(), successInt, r.Error)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListDrainRuns returns the most recent runs, newest first.
func (db *DB) ListDrainRuns(limit int) ([]DrainRun, error) {
	rows, err := db.db.Query(`
		SELECT id, started_at, finished_at, users, readings, duration_ms, success, COALESCE(error, '')
		FROM drain_runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DrainRun
	for rows.Next() {
		var r DrainRun
		var startStr, endStr string
		var durMs int64
		var successInt int
		if err := rows.Scan(&r.ID, &startStr, &endStr, &r.Users, &r.Readings, &durMs, &successInt, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, startStr)
		r.FinishedAt, _ = time.Parse(time.RFC3339, endStr)
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.Success = successInt == 1
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestDrainRun returns the most recent run, or ok=false if none exist.
func (db *DB) LatestDrainRun() (DrainRun, bool, error) {
	runs, err := db.ListDrainRuns(1)
	if err != nil {
		return DrainRun{}, false, err
	}
	if len(runs) == 0 {
		return DrainRun{}, false, nil
	}
	return runs[0], true, nil
}
