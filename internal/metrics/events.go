// Package metrics keeps a sqlite-backed ledger of resize operations, so
// the history command and the serve dashboard can answer "what ran and
// how did it go" without scraping logs.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome classifies how a resize operation ended.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

const schema = `
CREATE TABLE IF NOT EXISTS resize_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	source TEXT NOT NULL,
	dest TEXT NOT NULL,
	src_width INTEGER NOT NULL,
	src_height INTEGER NOT NULL,
	max_width INTEGER NOT NULL,
	max_height INTEGER NOT NULL,
	forced INTEGER NOT NULL,
	preset TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resize_events_created_at ON resize_events(created_at);
`

// Event is one recorded resize operation.
type Event struct {
	CreatedAt time.Time
	Source    string
	Dest      string
	SrcWidth  int
	SrcHeight int
	MaxWidth  int
	MaxHeight int
	Forced    bool
	Preset    string
	Outcome   Outcome
	Detail    string
	Duration  time.Duration
}

// Recorder writes and reads the ledger.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Recorder{db: db}, nil
}

// Close releases the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

// Record appends one event to the ledger. A zero CreatedAt is filled
// with the current time.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	forced := 0
	if e.Forced {
		forced = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO resize_events
			(created_at, source, dest, src_width, src_height, max_width, max_height, forced, preset, outcome, detail, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreatedAt, e.Source, e.Dest, e.SrcWidth, e.SrcHeight,
		e.MaxWidth, e.MaxHeight, forced, e.Preset, string(e.Outcome), e.Detail,
		e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record resize event: %w", err)
	}
	return nil
}

// Recent returns up to n events, newest first.
func (r *Recorder) Recent(ctx context.Context, n int) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT created_at, source, dest, src_width, src_height, max_width, max_height, forced, preset, outcome, detail, duration_ms
		FROM resize_events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var forced int
		var outcome string
		var durationMS int64
		if err := rows.Scan(&e.CreatedAt, &e.Source, &e.Dest, &e.SrcWidth, &e.SrcHeight,
			&e.MaxWidth, &e.MaxHeight, &forced, &e.Preset, &outcome, &e.Detail, &durationMS); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Forced = forced != 0
		e.Outcome = Outcome(outcome)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats holds operation counts for the dashboard windows.
type Stats struct {
	OK7Days      int64
	Errors7Days  int64
	OK30Days     int64
	Errors30Days int64
}

// GetStats aggregates outcomes over the last 7 and 30 days.
func (r *Recorder) GetStats(ctx context.Context) (*Stats, error) {
	now := time.Now().UTC()
	stats := &Stats{}

	count := func(outcome Outcome, since time.Time) (int64, error) {
		var n int64
		err := r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM resize_events WHERE outcome = ? AND created_at >= ?`,
			string(outcome), since).Scan(&n)
		return n, err
	}

	var err error
	sevenDaysAgo := now.Add(-7 * 24 * time.Hour)
	thirtyDaysAgo := now.Add(-30 * 24 * time.Hour)

	if stats.OK7Days, err = count(OutcomeOK, sevenDaysAgo); err != nil {
		return nil, err
	}
	if stats.Errors7Days, err = count(OutcomeError, sevenDaysAgo); err != nil {
		return nil, err
	}
	if stats.OK30Days, err = count(OutcomeOK, thirtyDaysAgo); err != nil {
		return nil, err
	}
	if stats.Errors30Days, err = count(OutcomeError, thirtyDaysAgo); err != nil {
		return nil, err
	}
	return stats, nil
}
