package playlist

import (
	"slices"
	"strings"
)

// Track is a playable audio entry with a stable identity
type Track struct {
	ID        string   // Stable, unique within a playlist
	Title     string   // Track title
	Artist    string   // Artist name
	SourceURI string   // Location handed to the audio primitive
	CoverURI  string   // Cover art location
	Moods     []string // Mood tags, lower-case and sorted
}

// HasMood reports whether the track is tagged with mood (case-insensitive)
func (t Track) HasMood(mood string) bool {
	mood = strings.ToLower(strings.TrimSpace(mood))
	return slices.Contains(t.Moods, mood)
}

// Equal compares every field, including mood tags
func (t Track) Equal(o Track) bool {
	return t.ID == o.ID &&
		t.Title == o.Title &&
		t.Artist == o.Artist &&
		t.SourceURI == o.SourceURI &&
		t.CoverURI == o.CoverURI &&
		slices.Equal(t.Moods, o.Moods)
}

// NormalizeMoods lower-cases, trims, de-duplicates and sorts mood tags
func NormalizeMoods(moods []string) []string {
	out := make([]string, 0, len(moods))
	for _, m := range moods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		out = append(out, m)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
