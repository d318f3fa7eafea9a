package player

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/jfmyers9/moodplayer/internal/playlist"
)

// defaultPersistInterval bounds how often progress alone rewrites the file
const defaultPersistInterval = 5 * time.Second

// Snapshot is what the player persists between runs. It also serves the
// now command, which reads it from another process.
type Snapshot struct {
	TrackID   string        `json:"track_id,omitempty"`
	Title     string        `json:"title,omitempty"`
	Artist    string        `json:"artist,omitempty"`
	CoverURI  string        `json:"cover_uri,omitempty"`
	State     string        `json:"state"`
	Position  time.Duration `json:"position"`
	Duration  time.Duration `json:"duration"` // media.UnknownDuration when unknown
	Volume    float64       `json:"volume"`
	Mood      string        `json:"mood,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Playing reports whether the snapshot was taken while audio was playing
func (s Snapshot) Playing() bool {
	return s.State == media.StatePlaying.String()
}

// Progress returns position and duration as shown by the player
func (s Snapshot) Progress() media.Progress {
	return media.Progress{Position: s.Position, Duration: s.Duration}
}

// State manages the persisted snapshot with thread-safe access
type State struct {
	mu              sync.RWMutex
	current         Snapshot
	filePath        string // Path to state file for persistence
	persistInterval time.Duration
	lastPersist     time.Time
	dirty           bool // Changes not yet written because of throttling
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath string) (*State, error) {
	s := &State{
		filePath:        filePath,
		persistInterval: defaultPersistInterval,
		current: Snapshot{
			State:    media.StateIdle.String(),
			Duration: media.UnknownDuration,
		},
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !errors.Is(err, os.ErrNotExist) {
			// Not fatal, the player can start fresh
			return s, err
		}
	}

	return s, nil
}

// ReadSnapshot loads a snapshot file without taking ownership of it
func ReadSnapshot(filePath string) (Snapshot, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Get returns a copy of the current snapshot
func (s *State) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetTrack records a newly loaded track
func (s *State) SetTrack(track playlist.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.TrackID = track.ID
	s.current.Title = track.Title
	s.current.Artist = track.Artist
	s.current.CoverURI = track.CoverURI
	s.current.Position = 0
	s.current.Duration = media.UnknownDuration
	return s.persist()
}

// ClearTrack forgets the track but keeps volume and mood
func (s *State) ClearTrack() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.TrackID = ""
	s.current.Title = ""
	s.current.Artist = ""
	s.current.CoverURI = ""
	s.current.Position = 0
	s.current.Duration = media.UnknownDuration
	return s.persist()
}

// SetPlayback records a state transition
func (s *State) SetPlayback(st media.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.State == st.String() {
		return nil
	}
	s.current.State = st.String()
	return s.persist()
}

// SetProgress records the position, writing at most once per interval
func (s *State) SetProgress(p media.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Position == p.Position && s.current.Duration == p.Duration {
		return nil
	}
	s.current.Position = p.Position
	s.current.Duration = p.Duration
	return s.throttledPersist()
}

// SetVolume records the volume
func (s *State) SetVolume(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Volume == v {
		return nil
	}
	s.current.Volume = v
	return s.persist()
}

// SetMood records the mood the playlist is scoped to
func (s *State) SetMood(mood string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Mood == mood {
		return nil
	}
	s.current.Mood = mood
	return s.persist()
}

// Flush writes pending throttled changes
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist writes only if the persist interval has elapsed
// Must be called with lock held
func (s *State) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current snapshot to disk
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		return nil // No persistence configured
	}

	s.current.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return err
	}

	s.lastPersist = time.Now()
	s.dirty = false
	return nil
}

// restore loads state from disk. A restored session never resumes as
// playing, so the state is reset to idle.
func (s *State) restore() error {
	snap, err := ReadSnapshot(s.filePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap.State = media.StateIdle.String()
	s.current = snap
	return nil
}
