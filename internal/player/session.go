// Package player owns one playback session: it constructs every component
// exactly once, keeps the playlist fed, persists resume state and records
// play history.
package player

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/moodplayer/internal/audio"
	"github.com/jfmyers9/moodplayer/internal/catalog"
	"github.com/jfmyers9/moodplayer/internal/feed"
	"github.com/jfmyers9/moodplayer/internal/history"
	"github.com/jfmyers9/moodplayer/internal/media"
	"github.com/jfmyers9/moodplayer/internal/playback"
	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// historyRetention bounds how long plays are kept
const historyRetention = 365 * 24 * time.Hour

// Options holds session configuration
type Options struct {
	CatalogDB    string        // Path to the catalog database
	HistoryDB    string        // Path to the play history database
	StateFile    string        // Path to the resume state file
	Manifest     string        // Optional manifest to import and watch
	PollInterval time.Duration // How often the playlist is refreshed from the catalog
	Volume       float64       // Volume when nothing is restored
	Mood         string        // Mood scope; empty falls back to the restored one
	Audio        audio.Config
}

// Session coordinates the catalog feed, the playback engine and the
// persistence around it
type Session struct {
	opts   Options
	id     string
	logger zerolog.Logger

	catalog  *catalog.Store
	history  *history.Log
	state    *State
	store    *playlist.Store
	control  *playback.Controller
	audio    *audio.Player
	engine   *media.Sync
	feed     *feed.Poller
	watcher  *feed.Watcher
	recorder *Recorder

	restored Snapshot
	unsubs   []func()
}

// NewSession opens the databases and builds the engine. Nothing plays
// until Run is called.
func NewSession(opts Options, logger zerolog.Logger) (*Session, error) {
	id := uuid.NewString()
	logger = logger.With().Str("session", id).Logger()

	state, err := NewState(opts.StateFile)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to restore state, starting fresh")
	}

	cat, err := catalog.Open(opts.CatalogDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	hist, err := history.Open(opts.HistoryDB)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("failed to open history: %w", err)
	}

	restored := state.Get()
	mood := opts.Mood
	if mood == "" {
		mood = restored.Mood
	}

	store := playlist.NewStore()
	control := playback.NewController(store, logger)
	player := audio.NewPlayer(opts.Audio, logger)
	engine := media.New(store, control, player, logger)
	poller := feed.NewPoller(cat, store, opts.PollInterval, mood, logger)

	s := &Session{
		opts:     opts,
		id:       id,
		logger:   logger.With().Str("component", "session").Logger(),
		catalog:  cat,
		history:  hist,
		state:    state,
		store:    store,
		control:  control,
		audio:    player,
		engine:   engine,
		feed:     poller,
		restored: restored,
	}
	s.recorder = NewRecorder(hist, store.Find, poller.Mood, id, logger)

	if opts.Manifest != "" {
		s.watcher = feed.NewWatcher(opts.Manifest, feed.DefaultDebounce, s.reloadManifest, logger)
	}

	return s, nil
}

// Controller returns the playback controller commands go through
func (s *Session) Controller() *playback.Controller { return s.control }

// Playlist returns the playlist store
func (s *Session) Playlist() *playlist.Store { return s.store }

// Engine returns the media sync, for status and notifications
func (s *Session) Engine() *media.Sync { return s.engine }

// Feed returns the catalog feed, for mood changes
func (s *Session) Feed() *feed.Poller { return s.feed }

// Catalog returns the catalog the playlist is fed from
func (s *Session) Catalog() *catalog.Store { return s.catalog }

// ID returns the session id recorded with every play
func (s *Session) ID() string { return s.id }

// SetMood rescopes the playlist to a mood ("" for every track)
func (s *Session) SetMood(mood string) {
	s.feed.SetMood(mood)
	if err := s.state.SetMood(s.feed.Mood()); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist mood")
	}
}

// Mood returns the current mood scope
func (s *Session) Mood() string { return s.feed.Mood() }

// Run starts playback and blocks until shell returns, the context is
// cancelled or a shutdown signal arrives
func (s *Session) Run(ctx context.Context, shell func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		s.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		select {
		case <-sigChan:
			s.logger.Warn().Msg("Second shutdown signal received, forcing exit")
			os.Exit(1)
		case <-time.After(10 * time.Second):
		}
	}()

	defer s.stop()
	if err := s.start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.feed.Run(gctx) })
	g.Go(func() error { return s.recorder.Run(gctx) })
	if s.watcher != nil {
		g.Go(func() error {
			if err := s.watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				// Losing the watcher only loses live reloads
				s.logger.Warn().Err(err).Msg("Manifest watcher stopped")
			}
			return nil
		})
	}
	if shell != nil {
		g.Go(func() error {
			defer cancel()
			return shell(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// start imports the manifest, loads the first playlist, restores the
// previous selection and starts the engine
func (s *Session) start(ctx context.Context) error {
	s.logger.Info().Str("mood", s.feed.Mood()).Msg("Starting session")

	if s.opts.Manifest != "" {
		if err := s.reloadManifest(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to import manifest")
		}
	}

	s.subscribe()
	s.unsubs = append(s.unsubs, s.recorder.Attach(s.engine))
	s.engine.Start()

	volume := s.opts.Volume
	if s.restored.Volume > 0 {
		volume = s.restored.Volume
	}
	s.control.SetVolume(volume)
	if err := s.state.SetVolume(s.control.Intent().Volume); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist volume")
	}

	s.feed.Poll(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	if id := s.restored.TrackID; id != "" {
		if _, ok := s.store.Find(id); ok {
			s.logger.Debug().Str("track_id", id).Msg("Restoring previous track")
			s.control.Cue(id)
		}
	}

	return s.state.SetMood(s.feed.Mood())
}

// subscribe keeps the resume state in step with the engine
func (s *Session) subscribe() {
	s.unsubs = append(s.unsubs,
		s.control.Subscribe(func(in playback.Intent) {
			if err := s.state.SetVolume(in.Volume); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to persist volume")
			}
		}),
		s.engine.OnState(func(st media.State) {
			s.persistState(st)
		}),
		s.engine.OnProgress(func(p media.Progress) {
			if err := s.state.SetProgress(p); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to persist progress")
			}
		}),
	)
}

func (s *Session) persistState(st media.State) {
	var err error
	switch st {
	case media.StateIdle:
		err = s.state.ClearTrack()
	case media.StateLoading:
		if track, ok := s.store.Find(s.engine.TrackID()); ok {
			err = s.state.SetTrack(track)
		}
	}
	if err == nil {
		err = s.state.SetPlayback(st)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist state")
	}
}

// stop halts playback and flushes state, in reverse order of start
func (s *Session) stop() {
	s.logger.Info().Msg("Stopping session")

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil

	s.engine.Stop()
	if err := s.audio.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to stop audio")
	}

	if err := s.state.SetPlayback(media.StateIdle); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist state")
	}
	if err := s.state.Flush(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to flush state")
	}
}

// reloadManifest re-imports the manifest and refreshes the playlist
func (s *Session) reloadManifest(ctx context.Context) error {
	result, err := s.catalog.Import(ctx, s.opts.Manifest, true)
	if err != nil {
		return err
	}
	s.logger.Info().
		Int("imported", result.Imported).
		Int64("deleted", result.Deleted).
		Msg("Imported manifest")
	s.feed.Refresh()
	return nil
}

// Close releases the databases
func (s *Session) Close() error {
	ctx := context.Background()
	if _, err := s.history.Cleanup(ctx, historyRetention); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to cleanup history")
	}

	var errs []error
	if err := s.history.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close history: %w", err))
	}
	if err := s.catalog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close catalog: %w", err))
	}
	return errors.Join(errs...)
}
