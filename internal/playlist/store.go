// Package playlist holds the current ordered track list and the ring
// navigation used to move through it.
package playlist

import (
	"slices"
	"sync"

	"github.com/jfmyers9/moodplayer/internal/notify"
)

// Store holds the current playlist. The whole sequence is replaced on every
// update; there is no incremental patching.
type Store struct {
	mu     sync.RWMutex
	tracks []Track
	index  map[string]int

	changed notify.Broadcaster[[]Track]
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Replace swaps in a new track sequence and notifies subscribers.
// Returns false, without notifying, when tracks is identical to the
// current sequence. When an id repeats, the first occurrence wins for
// lookups.
func (s *Store) Replace(tracks []Track) bool {
	next := cloneTracks(tracks)

	s.mu.Lock()
	if slices.EqualFunc(s.tracks, next, Track.Equal) {
		s.mu.Unlock()
		return false
	}

	index := make(map[string]int, len(next))
	for i, t := range next {
		if _, dup := index[t.ID]; !dup {
			index[t.ID] = i
		}
	}
	s.tracks = next
	s.index = index
	s.mu.Unlock()

	s.changed.Publish(cloneTracks(next))
	return true
}

// Tracks returns a copy of the current sequence
func (s *Store) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTracks(s.tracks)
}

// Find looks up a track by id
func (s *Store) Find(id string) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Track{}, false
	}
	return s.tracks[i], true
}

// Index returns the position of id in the current sequence
func (s *Store) Index(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	return i, ok
}

// At returns the track at position i
func (s *Store) At(i int) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.tracks) {
		return Track{}, false
	}
	return s.tracks[i], true
}

// Len returns the number of tracks
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Subscribe registers fn to receive every new snapshot.
// The returned function unsubscribes.
func (s *Store) Subscribe(fn func([]Track)) func() {
	return s.changed.Subscribe(fn)
}

func cloneTracks(in []Track) []Track {
	if in == nil {
		return nil
	}
	out := make([]Track, len(in))
	for i, t := range in {
		t.Moods = slices.Clone(t.Moods)
		out[i] = t
	}
	return out
}
