// Package catalog persists the song catalog and its mood tags in SQLite.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jfmyers9/moodplayer/internal/playlist"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a track id is not in the catalog
var ErrNotFound = errors.New("track not found")

// moodSep joins mood tags inside a single group_concat column
const moodSep = "\x1f"

// Store is the SQLite backed song catalog
type Store struct {
	db *sql.DB
}

// MoodCount is a mood tag and the number of tracks carrying it
type MoodCount struct {
	Mood   string
	Tracks int
}

// Open opens (and creates if needed) the catalog database at dbPath
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
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
		CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL DEFAULT '',
			source_uri TEXT NOT NULL,
			cover_uri TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS track_moods (
			track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			mood TEXT NOT NULL,
			PRIMARY KEY (track_id, mood)
		);

		CREATE INDEX IF NOT EXISTS idx_track_moods_mood ON track_moods(mood);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Upsert inserts or replaces tracks along with their mood tags
func (s *Store) Upsert(ctx context.Context, tracks []playlist.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertTx(ctx, tx, tracks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Sync makes the catalog hold exactly the given tracks, deleting any
// others. It returns the number of deleted tracks.
func (s *Store) Sync(ctx context.Context, tracks []playlist.Track) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsertTx(ctx, tx, tracks); err != nil {
		return 0, err
	}

	query := "DELETE FROM tracks"
	args := make([]any, 0, len(tracks))
	if len(tracks) > 0 {
		placeholders := make([]string, len(tracks))
		for i, t := range tracks {
			placeholders[i] = "?"
			args = append(args, t.ID)
		}
		query += " WHERE id NOT IN (" + strings.Join(placeholders, ", ") + ")"
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale tracks: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return deleted, nil
}

func upsertTx(ctx context.Context, tx *sql.Tx, tracks []playlist.Track) error {
	trackStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (id, title, artist, source_uri, cover_uri, updated_at)
		VALUES (?, ?, ?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			source_uri = excluded.source_uri,
			cover_uri = excluded.cover_uri,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer trackStmt.Close()

	clearStmt, err := tx.PrepareContext(ctx, "DELETE FROM track_moods WHERE track_id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer clearStmt.Close()

	moodStmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO track_moods (track_id, mood) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer moodStmt.Close()

	for _, t := range tracks {
		if t.ID == "" {
			return fmt.Errorf("track %q has no id", t.Title)
		}
		if _, err := trackStmt.ExecContext(ctx, t.ID, t.Title, t.Artist, t.SourceURI, t.CoverURI); err != nil {
			return fmt.Errorf("failed to upsert track %s: %w", t.ID, err)
		}
		if _, err := clearStmt.ExecContext(ctx, t.ID); err != nil {
			return fmt.Errorf("failed to clear moods for %s: %w", t.ID, err)
		}
		for _, mood := range playlist.NormalizeMoods(t.Moods) {
			if _, err := moodStmt.ExecContext(ctx, t.ID, mood); err != nil {
				return fmt.Errorf("failed to tag %s with %q: %w", t.ID, mood, err)
			}
		}
	}
	return nil
}

// Delete removes a track and its mood tags
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return nil
}

const selectTracks = `
	SELECT t.id, t.title, t.artist, t.source_uri, t.cover_uri,
		COALESCE((SELECT group_concat(m.mood, char(31)) FROM track_moods m WHERE m.track_id = t.id), '')
	FROM tracks t
`

// Tracks returns the catalog ordered by title. A non-empty mood limits the
// result to tracks tagged with it.
func (s *Store) Tracks(ctx context.Context, mood string) ([]playlist.Track, error) {
	query := selectTracks
	var args []any
	if mood = strings.ToLower(strings.TrimSpace(mood)); mood != "" {
		query += " WHERE EXISTS (SELECT 1 FROM track_moods m WHERE m.track_id = t.id AND m.mood = ?)"
		args = append(args, mood)
	}
	query += " ORDER BY t.title COLLATE NOCASE, t.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []playlist.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracks: %w", err)
	}
	return tracks, nil
}

// Get returns a single track by id
func (s *Store) Get(ctx context.Context, id string) (playlist.Track, error) {
	row := s.db.QueryRowContext(ctx, selectTracks+" WHERE t.id = ?", id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return playlist.Track{}, fmt.Errorf("track %s: %w", id, ErrNotFound)
	}
	return t, err
}

// Moods lists every mood tag with its track count, ordered by name
func (s *Store) Moods(ctx context.Context) ([]MoodCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mood, COUNT(*) FROM track_moods
		GROUP BY mood
		ORDER BY mood
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query moods: %w", err)
	}
	defer rows.Close()

	var moods []MoodCount
	for rows.Next() {
		var m MoodCount
		if err := rows.Scan(&m.Mood, &m.Tracks); err != nil {
			return nil, fmt.Errorf("failed to scan mood: %w", err)
		}
		moods = append(moods, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moods: %w", err)
	}
	return moods, nil
}

// Count returns the number of tracks in the catalog
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tracks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (playlist.Track, error) {
	var t playlist.Track
	var moods string
	if err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.SourceURI, &t.CoverURI, &moods); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("failed to scan track: %w", err)
	}
	if moods != "" {
		t.Moods = playlist.NormalizeMoods(strings.Split(moods, moodSep))
	}
	return t, nil
}
