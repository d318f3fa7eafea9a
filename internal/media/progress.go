package media

import (
	"errors"
	"fmt"
	"time"
)

// UnknownDuration marks a Progress whose duration has not been reported yet
const UnknownDuration time.Duration = -1

// ErrPlaybackRejected matches every PlaybackRejected via errors.Is
var ErrPlaybackRejected = errors.New("playback rejected")

// Progress is the primitive-reported playback position
type Progress struct {
	Position time.Duration // Current position, never negative
	Duration time.Duration // Track length or UnknownDuration
}

// DurationKnown reports whether metadata has supplied a duration
func (p Progress) DurationKnown() bool {
	return p.Duration >= 0
}

// String renders "m:ss / m:ss", with "-:--" for an unknown duration
func (p Progress) String() string {
	total := "-:--"
	if p.DurationKnown() {
		total = FormatClock(p.Duration)
	}
	return FormatClock(p.Position) + " / " + total
}

func resetProgress() Progress {
	return Progress{Duration: UnknownDuration}
}

// FormatClock renders d as m:ss. Negative values render as 0:00.
func FormatClock(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// State is the per-track lifecycle of the primitive as seen by Sync
type State int

const (
	StateIdle    State = iota // Nothing resolvable is selected
	StateLoading              // Source set, metadata not yet reported
	StatePlaying              // Metadata known and playback wanted
	StatePaused               // Metadata known and playback not wanted
)

// String returns a human-readable representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// PlaybackRejected is raised when the primitive refuses to play a track.
// It is a notification for the UI layer, not a failure of any command.
type PlaybackRejected struct {
	TrackID string
	Source  string
	Err     error
}

// Error returns the rejection message
func (r PlaybackRejected) Error() string {
	return fmt.Sprintf("playback rejected for track %s: %v", r.TrackID, r.Err)
}

// Unwrap returns the primitive's error
func (r PlaybackRejected) Unwrap() error {
	return r.Err
}

// Is makes errors.Is(r, ErrPlaybackRejected) true
func (r PlaybackRejected) Is(target error) bool {
	return target == ErrPlaybackRejected
}
