// Package media drives the audio primitive so that it matches the current
// playback intent, and turns primitive events back into observable
// progress. Sync is the only code allowed to touch the primitive.
package media

import (
	"context"
	"sync"
	"time"

	"github.com/jfmyers9/moodplayer/internal/notify"
	"github.com/jfmyers9/moodplayer/internal/playback"
	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
)

// Playlist resolves track ids and reports playlist replacements
type Playlist interface {
	Find(id string) (playlist.Track, bool)
	Subscribe(fn func([]playlist.Track)) func()
}

// Controller is the intent side Sync reconciles against
type Controller interface {
	Intent() playback.Intent
	TakeSeek() (pos time.Duration, ok bool)
	SetPlayingIf(expected playback.Intent, playing bool) bool
	Next() bool
	Subscribe(fn func(playback.Intent)) func()
}

// Sync reconciles playback intent into primitive calls. Every pass
// re-derives the desired primitive state from the latest intent and is
// tagged with a generation number; asynchronous play results from an
// older generation are discarded.
type Sync struct {
	mu         sync.Mutex
	playlist   Playlist
	controller Controller
	primitive  Primitive
	logger     zerolog.Logger

	generation uint64
	selection  uint64 // Intent.Selection of the loaded track
	trackID    string
	state      State
	progress   Progress
	rejected   *PlaybackRejected
	stopped    bool

	ctx    context.Context
	cancel context.CancelFunc
	unsubs []func()
	wg     sync.WaitGroup

	stateChanged    notify.Broadcaster[State]
	progressChanged notify.Broadcaster[Progress]
	rejections      notify.Broadcaster[PlaybackRejected]
}

// New creates a Sync. Nothing happens until Start is called.
func New(pl Playlist, c Controller, p Primitive, logger zerolog.Logger) *Sync {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sync{
		playlist:   pl,
		controller: c,
		primitive:  p,
		logger:     logger.With().Str("component", "media").Logger(),
		state:      StateIdle,
		progress:   resetProgress(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start installs primitive callbacks, subscribes to intent and playlist
// changes, and runs the first reconciliation pass
func (s *Sync) Start() {
	s.primitive.SetCallbacks(Callbacks{
		OnTimeUpdate:     s.handleTimeUpdate,
		OnMetadataLoaded: s.handleMetadataLoaded,
		OnEnded:          s.handleEnded,
		OnError:          s.handleError,
	})

	s.mu.Lock()
	s.unsubs = append(s.unsubs,
		s.controller.Subscribe(func(playback.Intent) { s.Reconcile() }),
		s.playlist.Subscribe(func([]playlist.Track) { s.Reconcile() }),
	)
	s.mu.Unlock()

	s.Reconcile()
}

// Stop unsubscribes, pauses the primitive and waits for outstanding play
// calls to settle
func (s *Sync) Stop() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.stopped = true
	s.generation++
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
	s.cancel()
	s.primitive.Pause()
	s.wg.Wait()
}

// State returns the current per-track state
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the last primitive-reported progress
func (s *Sync) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Generation returns the number of the latest reconciliation pass
func (s *Sync) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// TrackID returns the id of the loaded track ("" when idle)
func (s *Sync) TrackID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackID
}

// LastRejected returns the most recent rejection, if any
func (s *Sync) LastRejected() (PlaybackRejected, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected == nil {
		return PlaybackRejected{}, false
	}
	return *s.rejected, true
}

// OnState registers fn for state transitions
func (s *Sync) OnState(fn func(State)) func() {
	return s.stateChanged.Subscribe(fn)
}

// OnProgress registers fn for progress updates
func (s *Sync) OnProgress(fn func(Progress)) func() {
	return s.progressChanged.Subscribe(fn)
}

// OnRejected registers fn for non-fatal playback rejections
func (s *Sync) OnRejected(fn func(PlaybackRejected)) func() {
	return s.rejections.Subscribe(fn)
}

// Reconcile drives the primitive towards the current intent. It is
// idempotent with respect to that intent.
func (s *Sync) Reconcile() {
	var out pending

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation

	// Consume the seek before snapshotting so the snapshot reflects it.
	// A seek against an unresolvable selection is dropped.
	seek, hasSeek := s.controller.TakeSeek()
	in := s.controller.Intent()

	s.primitive.SetVolume(in.Volume)

	track, ok := playlist.Track{}, false
	if in.HasTrack() {
		track, ok = s.playlist.Find(in.TrackID)
	}

	if !ok {
		if in.HasTrack() {
			s.logger.Debug().
				Str("track_id", in.TrackID).
				Err(playback.ErrTrackNotFound).
				Msg("Selected track not in playlist, going idle")
		}
		s.primitive.Pause()
		if s.primitive.Source() != "" {
			s.primitive.SetSource("")
		}
		s.trackID = ""
		s.selection = in.Selection
		s.setStateLocked(&out, StateIdle)
		s.setProgressLocked(&out, resetProgress())
		s.mu.Unlock()
		s.publish(out)
		return
	}

	if track.SourceURI != s.primitive.Source() || in.Selection != s.selection || s.state == StateIdle {
		s.logger.Debug().
			Str("track_id", track.ID).
			Str("source", track.SourceURI).
			Uint64("generation", gen).
			Msg("Loading track")
		s.primitive.SetSource(track.SourceURI)
		s.primitive.Load()
		s.setStateLocked(&out, StateLoading)
		s.setProgressLocked(&out, resetProgress())
	}
	s.trackID = track.ID
	s.selection = in.Selection

	if hasSeek {
		s.primitive.SetCurrentTime(seek)
	}

	if in.Playing {
		if s.state == StatePaused {
			s.setStateLocked(&out, StatePlaying)
		}
		s.wg.Add(1)
	} else {
		s.primitive.Pause()
		if s.state == StatePlaying {
			s.setStateLocked(&out, StatePaused)
		}
	}
	s.mu.Unlock()

	// Subscribers see Loading before any outcome of the play call
	s.publish(out)
	if in.Playing {
		go s.play(gen, in, track)
	}
}

// play runs the primitive's asynchronous play and applies its outcome
// only if no newer pass has started since
func (s *Sync) play(gen uint64, in playback.Intent, track playlist.Track) {
	defer s.wg.Done()

	// A newer pass owns the primitive now and has issued its own play if
	// the intent still wants one
	s.mu.Lock()
	stale := gen != s.generation
	s.mu.Unlock()
	if stale {
		s.logger.Debug().
			Uint64("generation", gen).
			Str("track_id", track.ID).
			Msg("Skipping stale play")
		return
	}

	err := s.primitive.Play(s.ctx)

	s.mu.Lock()
	if gen != s.generation {
		// The play may have started after a newer pass paused. Re-apply
		// the paused half of the latest intent.
		if err == nil && (s.stopped || s.state == StateIdle || !s.controller.Intent().Playing) {
			s.primitive.Pause()
		}
		s.mu.Unlock()
		s.logger.Debug().
			Uint64("generation", gen).
			Str("track_id", track.ID).
			Msg("Discarding stale play result")
		return
	}
	if err == nil {
		s.mu.Unlock()
		return
	}

	var out pending
	rej := PlaybackRejected{TrackID: track.ID, Source: track.SourceURI, Err: err}
	s.rejected = &rej
	if s.state == StatePlaying {
		s.setStateLocked(&out, StatePaused)
	}
	s.mu.Unlock()

	s.publish(out)
	s.reject(in, rej)
}

// reject falls back to paused and raises the non-fatal notification
func (s *Sync) reject(in playback.Intent, rej PlaybackRejected) {
	s.logger.Warn().
		Err(rej.Err).
		Str("track_id", rej.TrackID).
		Str("source", rej.Source).
		Msg("Playback rejected")

	s.rejections.Publish(rej)

	if !s.controller.SetPlayingIf(in, false) {
		s.logger.Debug().Str("track_id", rej.TrackID).Msg("Intent moved on before rejection applied")
	}
}

func (s *Sync) handleTimeUpdate() {
	var out pending

	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	p := s.progress
	p.Position = max(s.primitive.CurrentTime(), 0)
	if d, ok := s.primitive.Duration(); ok {
		p.Duration = d
	}
	s.setProgressLocked(&out, p)
	s.mu.Unlock()

	s.publish(out)
}

func (s *Sync) handleMetadataLoaded() {
	var out pending

	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	p := s.progress
	p.Position = max(s.primitive.CurrentTime(), 0)
	p.Duration = UnknownDuration
	if d, ok := s.primitive.Duration(); ok {
		p.Duration = d
	}
	s.setProgressLocked(&out, p)

	if s.state == StateLoading {
		if s.controller.Intent().Playing {
			s.setStateLocked(&out, StatePlaying)
		} else {
			s.setStateLocked(&out, StatePaused)
		}
	}
	s.mu.Unlock()

	s.publish(out)
}

// handleEnded advances to the next track. This is the only place a
// selection change originates from the primitive instead of a user.
// An end reported for a source that is no longer loaded arrived after the
// user moved on and is ignored.
func (s *Sync) handleEnded(source string) {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	if loaded := s.primitive.Source(); source != loaded {
		s.mu.Unlock()
		s.logger.Debug().
			Str("source", source).
			Str("loaded", loaded).
			Msg("Ignoring end of a replaced source")
		return
	}
	trackID := s.trackID
	s.mu.Unlock()

	s.logger.Debug().Str("track_id", trackID).Msg("Track ended")

	if s.controller.Next() {
		return
	}

	var out pending
	s.mu.Lock()
	s.primitive.Pause()
	s.setStateLocked(&out, StateIdle)
	s.mu.Unlock()
	s.publish(out)
}

// handleError treats a media error during playback like a rejected play
func (s *Sync) handleError(err error) {
	var out pending

	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	in := s.controller.Intent()
	rej := PlaybackRejected{TrackID: s.trackID, Source: s.primitive.Source(), Err: err}
	s.rejected = &rej
	if s.state == StatePlaying {
		s.setStateLocked(&out, StatePaused)
	}
	s.mu.Unlock()

	s.publish(out)
	s.reject(in, rej)
}

// pending collects notifications raised under the lock so they can be
// published after it is released
type pending struct {
	state    *State
	progress *Progress
}

func (s *Sync) setStateLocked(out *pending, st State) {
	if s.state == st {
		return
	}
	s.logger.Debug().Str("from", s.state.String()).Str("to", st.String()).Msg("State transition")
	s.state = st
	out.state = &st
}

func (s *Sync) setProgressLocked(out *pending, p Progress) {
	if s.progress == p {
		return
	}
	s.progress = p
	out.progress = &p
}

func (s *Sync) publish(out pending) {
	if out.state != nil {
		s.stateChanged.Publish(*out.state)
	}
	if out.progress != nil {
		s.progressChanged.Publish(*out.progress)
	}
}
