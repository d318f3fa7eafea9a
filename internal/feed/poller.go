// Package feed keeps the playlist in step with the catalog by pushing full
// snapshots into it.
package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
)

// Source produces the track list for a mood ("" means every track)
type Source interface {
	Tracks(ctx context.Context, mood string) ([]playlist.Track, error)
}

// Sink accepts a full playlist snapshot and reports whether it changed
type Sink interface {
	Replace(tracks []playlist.Track) bool
}

// Poller reads the source at regular intervals, or on demand, and
// replaces the sink's contents with the result
type Poller struct {
	source   Source
	sink     Sink
	interval time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	mood    string
	refresh chan struct{}
}

// NewPoller creates a new Poller instance
func NewPoller(source Source, sink Sink, interval time.Duration, mood string, logger zerolog.Logger) *Poller {
	return &Poller{
		source:   source,
		sink:     sink,
		interval: interval,
		mood:     normalizeMood(mood),
		logger:   logger.With().Str("component", "feed").Logger(),
		refresh:  make(chan struct{}, 1),
	}
}

// Mood returns the mood the feed is scoped to
func (p *Poller) Mood() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mood
}

// SetMood scopes the feed to a mood and schedules an immediate refresh
func (p *Poller) SetMood(mood string) {
	p.mu.Lock()
	p.mood = normalizeMood(mood)
	p.mu.Unlock()
	p.Refresh()
}

// Refresh schedules a poll without waiting for the next tick
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run starts the polling loop
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Str("mood", p.Mood()).
		Msg("Starting feed")

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Poll immediately on start
	p.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Feed stopped")
			return ctx.Err()
		case <-tick:
			p.Poll(ctx)
		case <-p.refresh:
			p.Poll(ctx)
		}
	}
}

// Poll reads the source once and pushes the snapshot. On error the
// playlist is left as it was.
func (p *Poller) Poll(ctx context.Context) {
	mood := p.Mood()
	tracks, err := p.source.Tracks(ctx, mood)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Str("mood", mood).Msg("Failed to read tracks")
		}
		return
	}

	if p.sink.Replace(tracks) {
		p.logger.Debug().
			Str("mood", mood).
			Int("tracks", len(tracks)).
			Msg("Playlist updated")
	}
}

func normalizeMood(mood string) string {
	return strings.ToLower(strings.TrimSpace(mood))
}
