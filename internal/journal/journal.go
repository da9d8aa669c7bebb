// Package journal keeps a local DuckDB log of terminated sessions so
// operators can review what ran after it has scrolled off the live view.
// It is a best-effort convenience log: write failures are reported but
// never block the sync path.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/gatewatch/gatewatch/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_journal (
	key            VARCHAR NOT NULL,
	ended_at       TIMESTAMP NOT NULL,
	activity_state VARCHAR,
	total_tokens   BIGINT,
	summary        VARCHAR,
	PRIMARY KEY (key, ended_at)
)`

// Entry is one journaled termination.
type Entry struct {
	Key           string
	EndedAt       time.Time
	ActivityState string
	TotalTokens   int64
	Summary       string
}

// Journal wraps a DuckDB database holding the termination log.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database at path. An empty path
// opens an in-memory database, which is what the tests use.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// DuckDB works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordTermination journals a session that vanished from the live
// snapshot. Duplicate (key, ended_at) pairs are ignored.
func (j *Journal) RecordTermination(rec *models.SessionRecord, endedAt time.Time) error {
	if rec == nil {
		return nil
	}
	summary := ""
	if rec.LastMessagePreview != nil {
		summary = rec.LastMessagePreview.Text
	}
	return j.insert(Entry{
		Key:           rec.Key,
		EndedAt:       endedAt.UTC(),
		ActivityState: string(rec.ActivityState),
		TotalTokens:   rec.TokenUsage.Total,
		Summary:       summary,
	})
}

// RecordHistorical journals a historical-session summary supplied by the
// gateway itself.
func (j *Journal) RecordHistorical(h models.HistoricalSession) error {
	return j.insert(Entry{
		Key:           h.Key,
		EndedAt:       time.UnixMilli(h.EndedAt).UTC(),
		ActivityState: h.ActivityState,
		TotalTokens:   h.TotalTokens,
		Summary:       h.Summary,
	})
}

func (j *Journal) insert(e Entry) error {
	_, err := j.db.Exec(`
		INSERT INTO session_journal (key, ended_at, activity_state, total_tokens, summary)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		e.Key, e.EndedAt, e.ActivityState, e.TotalTokens, e.Summary)
	if err != nil {
		return fmt.Errorf("failed to journal session %s: %w", e.Key, err)
	}
	return nil
}

// Recent returns the most recently ended sessions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT key, ended_at, activity_state, total_tokens, summary
		FROM session_journal
		ORDER BY ended_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var state, summary sql.NullString
		var tokens sql.NullInt64
		if err := rows.Scan(&e.Key, &e.EndedAt, &state, &tokens, &summary); err != nil {
			continue
		}
		e.ActivityState = state.String
		e.TotalTokens = tokens.Int64
		e.Summary = summary.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
