package player

import (
	"context"
	"sync"
	"time"

	"github.com/jfmyers9/moodplayer/internal/history"
	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
)

// maxProgressStep is the largest position jump still counted as heard
// time. Larger jumps are seeks.
const maxProgressStep = 5 * time.Second

// PlaySink stores recorded plays
type PlaySink interface {
	Record(ctx context.Context, p history.Play) (int64, error)
}

// Engine is the observable side of media.Sync the recorder listens to
type Engine interface {
	TrackID() string
	OnState(fn func(media.State)) func()
	OnProgress(fn func(media.Progress)) func()
	OnRejected(fn func(media.PlaybackRejected)) func()
}

// listen accumulates heard time for one load of one track
type listen struct {
	track    playlist.Track
	started  time.Time
	playing  bool
	last     time.Duration
	heard    time.Duration
	progress media.Progress
	recorded bool
}

// Recorder turns engine notifications into history plays. A play is
// recorded once per load, when the heard time crosses the listening
// threshold or when the primitive rejects the track.
type Recorder struct {
	sink    PlaySink
	tracks  func(id string) (playlist.Track, bool)
	mood    func() string
	session string
	logger  zerolog.Logger

	mu  sync.Mutex
	cur *listen

	plays chan history.Play
}

// NewRecorder creates a Recorder. find resolves track ids and mood
// reports the current playlist scope.
func NewRecorder(sink PlaySink, find func(id string) (playlist.Track, bool), mood func() string, session string, logger zerolog.Logger) *Recorder {
	return &Recorder{
		sink:    sink,
		tracks:  find,
		mood:    mood,
		session: session,
		logger:  logger.With().Str("component", "recorder").Logger(),
		plays:   make(chan history.Play, 64),
	}
}

// Attach subscribes to the engine and returns the unsubscribe function
func (r *Recorder) Attach(e Engine) func() {
	unsubs := []func(){
		e.OnState(func(st media.State) { r.handleState(st, e.TrackID()) }),
		e.OnProgress(r.handleProgress),
		e.OnRejected(r.handleRejected),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Run writes queued plays until the context is cancelled, then drains
// what is left
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case p := <-r.plays:
					r.write(context.Background(), p)
				default:
					return ctx.Err()
				}
			}
		case p := <-r.plays:
			r.write(ctx, p)
		}
	}
}

func (r *Recorder) write(ctx context.Context, p history.Play) {
	if _, err := r.sink.Record(ctx, p); err != nil {
		r.logger.Error().Err(err).Str("track_id", p.TrackID).Msg("Failed to record play")
		return
	}
	r.logger.Info().
		Str("track", p.Title).
		Str("artist", p.Artist).
		Dur("heard", p.Heard).
		Msg("Recorded play")
}

func (r *Recorder) handleState(st media.State, trackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st == media.StateIdle {
		r.cur = nil
		return
	}

	// A reselect during Loading publishes no new state, so a changed track
	// id also starts a new listen
	if st == media.StateLoading || r.cur == nil || r.cur.track.ID != trackID {
		r.startLocked(trackID)
	}
	if r.cur != nil {
		r.cur.playing = st == media.StatePlaying
	}
}

// startLocked begins a listen for trackID. Must be called with lock held.
func (r *Recorder) startLocked(trackID string) {
	track, ok := r.tracks(trackID)
	if !ok {
		r.cur = nil
		return
	}
	r.cur = &listen{
		track:    track,
		started:  time.Now(),
		progress: media.Progress{Duration: media.UnknownDuration},
	}
}

func (r *Recorder) handleProgress(p media.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.cur
	if l == nil {
		return
	}

	step := p.Position - l.last
	if l.playing && step > 0 && step <= maxProgressStep {
		l.heard += step
	}
	l.last = p.Position
	l.progress = p

	if l.recorded || !history.CountsAsListen(p.Duration, p.DurationKnown(), l.heard) {
		return
	}
	l.recorded = true
	r.enqueue(r.playLocked(l, ""))
}

func (r *Recorder) handleRejected(rej media.PlaybackRejected) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.cur
	if l == nil || l.recorded || l.track.ID != rej.TrackID {
		return
	}
	l.recorded = true
	msg := "playback rejected"
	if rej.Err != nil {
		msg = rej.Err.Error()
	}
	r.enqueue(r.playLocked(l, msg))
}

// playLocked builds the history entry for l. Must be called with lock held.
func (r *Recorder) playLocked(l *listen, errMsg string) history.Play {
	p := history.Play{
		Session:   r.session,
		TrackID:   l.track.ID,
		Title:     l.track.Title,
		Artist:    l.track.Artist,
		Heard:     l.heard,
		Timestamp: l.started,
		Error:     errMsg,
	}
	if r.mood != nil {
		p.Mood = r.mood()
	}
	if l.progress.DurationKnown() {
		p.Duration = l.progress.Duration
	}
	return p
}

// enqueue hands a play to Run without blocking engine callbacks
func (r *Recorder) enqueue(p history.Play) {
	select {
	case r.plays <- p:
	default:
		r.logger.Warn().Str("track_id", p.TrackID).Msg("Play queue full, dropping play")
	}
}
