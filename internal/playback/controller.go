// Package playback holds playback intent and the command API used by the
// UI layer. Commands are synchronous state transitions; nothing here talks
// to the audio primitive.
package playback

import (
	"math"
	"sync"
	"time"

	"github.com/jfmyers9/moodplayer/internal/notify"
	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
)

// Playlist is the read side of the playlist store used for id resolution
type Playlist interface {
	Tracks() []playlist.Track
}

// Controller owns the PlaybackIntent and publishes every change to it
type Controller struct {
	mu       sync.Mutex
	intent   Intent
	playlist Playlist
	logger   zerolog.Logger

	changed notify.Broadcaster[Intent]
}

// NewController creates a Controller with nothing selected and the
// default volume
func NewController(pl Playlist, logger zerolog.Logger) *Controller {
	return &Controller{
		intent:   Intent{Volume: DefaultVolume},
		playlist: pl,
		logger:   logger.With().Str("component", "controller").Logger(),
	}
}

// Intent returns a copy of the current intent
func (c *Controller) Intent() Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intent
}

// Subscribe registers fn to receive the intent after every command.
// The returned function unsubscribes.
func (c *Controller) Subscribe(fn func(Intent)) func() {
	return c.changed.Subscribe(fn)
}

// SelectTrack selects id and requests playback. The id does not have to
// be in the playlist yet; resolution happens during reconciliation.
func (c *Controller) SelectTrack(id string) {
	c.update(func(in *Intent) {
		c.selectLocked(in, id)
	})
}

// Cue selects id without requesting playback
func (c *Controller) Cue(id string) {
	c.update(func(in *Intent) {
		c.selectLocked(in, id)
		in.Playing = false
	})
}

// TogglePlayPause flips the play flag. With nothing selected it selects
// the first track of a non-empty playlist instead.
func (c *Controller) TogglePlayPause() {
	c.update(func(in *Intent) {
		if in.HasTrack() {
			in.Playing = !in.Playing
			return
		}

		tracks := c.playlist.Tracks()
		if len(tracks) == 0 {
			c.logger.Debug().Err(ErrEmptyPlaylist).Msg("Toggle ignored")
			return
		}
		c.selectLocked(in, tracks[0].ID)
	})
}

// Next selects the track after the current one, wrapping at the end.
// Returns false when the selection could not move.
func (c *Controller) Next() bool {
	return c.step("next", playlist.Next)
}

// Prev selects the track before the current one, wrapping at the start.
// Returns false when the selection could not move.
func (c *Controller) Prev() bool {
	return c.step("prev", playlist.Prev)
}

// Seek requests a new playback position. Negative positions clamp to zero.
func (c *Controller) Seek(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	c.update(func(in *Intent) {
		in.Seek = pos
		in.SeekPending = true
	})
}

// SetVolume stores v clamped to [0, 1]. NaN is ignored.
func (c *Controller) SetVolume(v float64) {
	if math.IsNaN(v) {
		c.logger.Debug().Msg("Ignoring NaN volume")
		return
	}
	c.update(func(in *Intent) {
		in.Volume = ClampVolume(v)
	})
}

// SetPlaying sets the play flag without touching the selection
func (c *Controller) SetPlaying(playing bool) {
	c.update(func(in *Intent) {
		in.Playing = playing
	})
}

// SetPlayingIf sets the play flag only when the current intent still
// equals expected. Asynchronous continuations use it so a result that
// settles after a newer command cannot overwrite that command's intent.
func (c *Controller) SetPlayingIf(expected Intent, playing bool) bool {
	c.mu.Lock()
	if c.intent != expected {
		c.mu.Unlock()
		return false
	}
	changed := c.intent.Playing != playing
	c.intent.Playing = playing
	after := c.intent
	c.mu.Unlock()

	if changed {
		c.changed.Publish(after)
	}
	return true
}

// Clear deselects the current track and stops playback
func (c *Controller) Clear() {
	c.update(func(in *Intent) {
		in.TrackID = ""
		in.Playing = false
		in.Seek = 0
		in.SeekPending = false
	})
}

// TakeSeek returns the pending seek request and clears it. Consuming a
// request is not an intent change, so no notification is sent.
func (c *Controller) TakeSeek() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.intent.SeekPending {
		return 0, false
	}
	pos := c.intent.Seek
	c.intent.Seek = 0
	c.intent.SeekPending = false
	return pos, true
}

// step moves the selection through the ring using move
func (c *Controller) step(name string, move func(i, n int) int) bool {
	moved := false
	c.update(func(in *Intent) {
		if !in.HasTrack() {
			c.logger.Debug().Str("command", name).Err(ErrNoSelection).Msg("Navigation ignored")
			return
		}

		tracks := c.playlist.Tracks()
		if len(tracks) == 0 {
			c.logger.Debug().Str("command", name).Err(ErrEmptyPlaylist).Msg("Navigation ignored")
			return
		}

		idx := indexOf(tracks, in.TrackID)
		if idx < 0 {
			c.logger.Debug().
				Str("command", name).
				Str("track_id", in.TrackID).
				Err(ErrTrackNotFound).
				Msg("Navigation ignored")
			return
		}

		c.selectLocked(in, tracks[move(idx, len(tracks))].ID)
		moved = true
	})
	return moved
}

// selectLocked applies selectTrack semantics. Must be called inside update.
func (c *Controller) selectLocked(in *Intent, id string) {
	in.Selection++
	in.TrackID = id
	in.Playing = true
	in.Seek = 0
	in.SeekPending = false
}

// update applies fn under the lock and publishes the resulting intent
// when it changed
func (c *Controller) update(fn func(*Intent)) {
	c.mu.Lock()
	before := c.intent
	fn(&c.intent)
	after := c.intent
	c.mu.Unlock()

	if after == before {
		return
	}
	c.changed.Publish(after)
}

func indexOf(tracks []playlist.Track, id string) int {
	for i, t := range tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
