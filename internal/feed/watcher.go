package feed

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the burst of events an editor save produces
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls a reload function whenever a file changes
type Watcher struct {
	path     string
	debounce time.Duration
	reload   func(ctx context.Context) error
	logger   zerolog.Logger
}

// NewWatcher creates a Watcher for path
func NewWatcher(path string, debounce time.Duration, reload func(ctx context.Context) error, logger zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		reload:   reload,
		logger:   logger.With().Str("component", "watcher").Str("path", path).Logger(),
	}
}

// Run watches until the context is cancelled. The parent directory is
// watched so that files replaced by rename are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.logger.Info().Msg("Watching manifest")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().Str("op", event.Op.String()).Msg("Manifest changed")
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")

		case <-timer.C:
			if err := w.reload(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("Failed to reload manifest")
				continue
			}
			w.logger.Info().Msg("Manifest reloaded")
		}
	}
}
