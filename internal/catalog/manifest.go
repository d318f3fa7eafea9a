package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/jfmyers9/moodplayer/internal/playlist"
)

// Manifest is the TOML track list a catalog is imported from:
//
//	[[track]]
//	id = "night-drive"          # optional, derived from source when empty
//	title = "Night Drive"
//	artist = "Someone"
//	source = "music/night-drive.mp3"
//	cover = "covers/night-drive.jpg"
//	moods = ["calm", "late"]
type Manifest struct {
	Tracks []ManifestTrack `toml:"track"`
}

// ManifestTrack is one [[track]] entry
type ManifestTrack struct {
	ID     string   `toml:"id"`
	Title  string   `toml:"title"`
	Artist string   `toml:"artist"`
	Source string   `toml:"source"`
	Cover  string   `toml:"cover"`
	Moods  []string `toml:"moods"`
}

// LoadManifest reads and validates a manifest file. Relative source and
// cover paths are resolved against the manifest's directory.
func LoadManifest(path string) ([]playlist.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	return m.Resolve(filepath.Dir(path))
}

// Resolve converts manifest entries into tracks
func (m Manifest) Resolve(baseDir string) ([]playlist.Track, error) {
	tracks := make([]playlist.Track, 0, len(m.Tracks))
	seen := make(map[string]int, len(m.Tracks))

	for i, e := range m.Tracks {
		title := strings.TrimSpace(e.Title)
		source := strings.TrimSpace(e.Source)
		if title == "" {
			return nil, fmt.Errorf("track %d: title is required", i+1)
		}
		if source == "" {
			return nil, fmt.Errorf("track %d (%s): source is required", i+1, title)
		}

		source = resolvePath(baseDir, source)
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = TrackID(source)
		}
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("track %d (%s): duplicate id %q (first used by track %d)", i+1, title, id, prev)
		}
		seen[id] = i + 1

		tracks = append(tracks, playlist.Track{
			ID:        id,
			Title:     title,
			Artist:    strings.TrimSpace(e.Artist),
			SourceURI: source,
			CoverURI:  resolvePath(baseDir, strings.TrimSpace(e.Cover)),
			Moods:     playlist.NormalizeMoods(e.Moods),
		})
	}

	return tracks, nil
}

// TrackID derives a stable id from a source location
func TrackID(source string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source)).String()
}

// resolvePath anchors relative file paths at baseDir. URLs and absolute
// paths are returned unchanged.
func resolvePath(baseDir, p string) string {
	if p == "" || baseDir == "" || filepath.IsAbs(p) || strings.Contains(p, "://") {
		return p
	}
	return filepath.Join(baseDir, p)
}

// ImportResult summarizes a manifest import
type ImportResult struct {
	Imported int   // Tracks inserted or updated
	Deleted  int64 // Tracks removed because the manifest no longer lists them
}

// Import loads the manifest at path into the store. With prune set the
// catalog is made to match the manifest exactly.
func (s *Store) Import(ctx context.Context, path string, prune bool) (ImportResult, error) {
	tracks, err := LoadManifest(path)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{Imported: len(tracks)}
	if prune {
		result.Deleted, err = s.Sync(ctx, tracks)
	} else {
		err = s.Upsert(ctx, tracks)
	}
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to import %s: %w", path, err)
	}
	return result, nil
}
