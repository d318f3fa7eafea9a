// Package history records which tracks were listened to.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Log is the SQLite backed play history
type Log struct {
	db *sql.DB
}

// Play is one recorded play of a track
type Play struct {
	ID        int64
	Session   string // Player session the play belongs to
	TrackID   string
	Title     string
	Artist    string
	Mood      string        // Mood the playlist was scoped to, if any
	Duration  time.Duration // Zero when unknown
	Heard     time.Duration
	Timestamp time.Time // When playback of the track started
	Error     string    // Set when the audio primitive rejected playback
}

// Open opens (and creates if needed) the history database at dbPath
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS plays (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			track_id TEXT NOT NULL,
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			mood TEXT NOT NULL DEFAULT '',
			duration INTEGER NOT NULL DEFAULT 0,
			heard INTEGER NOT NULL DEFAULT 0,
			timestamp INTEGER NOT NULL,
			error TEXT,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_plays_timestamp ON plays(timestamp);
		CREATE INDEX IF NOT EXISTS idx_plays_track ON plays(track_id);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the database connection
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Record adds a play to the history
func (l *Log) Record(ctx context.Context, p Play) (int64, error) {
	query := `
		INSERT INTO plays (session, track_id, title, artist, mood, duration, heard, timestamp, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''))
	`

	result, err := l.db.ExecContext(ctx, query,
		p.Session,
		p.TrackID,
		p.Title,
		p.Artist,
		p.Mood,
		int64(p.Duration.Seconds()),
		int64(p.Heard.Seconds()),
		p.Timestamp.Unix(),
		p.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert play: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// Recent returns the latest plays, newest first
// Optionally limits the number of results
func (l *Log) Recent(ctx context.Context, limit int) ([]Play, error) {
	query := `
		SELECT id, session, track_id, title, artist, mood, duration, heard, timestamp, COALESCE(error, '')
		FROM plays
		ORDER BY timestamp DESC, id DESC
	`

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []Play
	for rows.Next() {
		var p Play
		var durationSecs, heardSecs, timestampUnix int64

		err := rows.Scan(
			&p.ID,
			&p.Session,
			&p.TrackID,
			&p.Title,
			&p.Artist,
			&p.Mood,
			&durationSecs,
			&heardSecs,
			&timestampUnix,
			&p.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}

		p.Duration = time.Duration(durationSecs) * time.Second
		p.Heard = time.Duration(heardSecs) * time.Second
		p.Timestamp = time.Unix(timestampUnix, 0)

		plays = append(plays, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plays: %w", err)
	}

	return plays, nil
}

// Cleanup removes plays older than maxAge to prevent unbounded growth
func (l *Log) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := l.db.ExecContext(ctx, "DELETE FROM plays WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old plays: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of plays
// If includeFailed is false, rejected plays are not counted
func (l *Log) Count(ctx context.Context, includeFailed bool) (int, error) {
	query := "SELECT COUNT(*) FROM plays"
	if !includeFailed {
		query += " WHERE error IS NULL"
	}

	var count int
	if err := l.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}

	return count, nil
}
