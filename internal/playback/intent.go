package playback

import (
	"errors"
	"math"
	"time"
)

// DefaultVolume is the volume a new Controller starts with
const DefaultVolume = 0.75

// Reasons a navigation command left the intent unchanged. They are
// logged, never returned to the caller of a command.
var (
	ErrNoSelection   = errors.New("no track selected")
	ErrTrackNotFound = errors.New("track not found in playlist")
	ErrEmptyPlaylist = errors.New("playlist is empty")
)

// Intent is the desired playback configuration
type Intent struct {
	TrackID     string        // Selected track ("" when nothing is selected)
	Playing     bool          // Whether playback is wanted
	Volume      float64       // Output volume in [0, 1]
	Seek        time.Duration // Requested position, valid when SeekPending
	SeekPending bool          // Whether Seek still has to be applied

	// Selection increases on every selectTrack, including re-selecting the
	// same id, so a reconciler can tell a fresh selection from a no-op.
	Selection uint64
}

// HasTrack reports whether a track is selected
func (i Intent) HasTrack() bool {
	return i.TrackID != ""
}

// ClampVolume limits v to [0, 1]
func ClampVolume(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
