package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves tracks filtered by mood and can be made to fail
type fakeSource struct {
	mu     sync.Mutex
	tracks []playlist.Track
	err    error
	moods  []string
}

func (f *fakeSource) Tracks(_ context.Context, mood string) ([]playlist.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moods = append(f.moods, mood)
	if f.err != nil {
		return nil, f.err
	}
	var out []playlist.Track
	for _, t := range f.tracks {
		if mood == "" || t.HasMood(mood) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSource) set(tracks []playlist.Track, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracks, f.err = tracks, err
}

func (f *fakeSource) queriedMoods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.moods...)
}

func library() []playlist.Track {
	return []playlist.Track{
		{ID: "a", Title: "A", SourceURI: "a.mp3", Moods: []string{"calm"}},
		{ID: "b", Title: "B", SourceURI: "b.mp3", Moods: []string{"energetic"}},
	}
}

func ids(tracks []playlist.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func TestPollReplacesPlaylist(t *testing.T) {
	src := &fakeSource{tracks: library()}
	store := playlist.NewStore()
	p := NewPoller(src, store, 0, "", zerolog.Nop())

	p.Poll(context.Background())
	assert.Equal(t, []string{"a", "b"}, ids(store.Tracks()))
}

func TestPollErrorKeepsPlaylist(t *testing.T) {
	src := &fakeSource{tracks: library()}
	store := playlist.NewStore()
	p := NewPoller(src, store, 0, "", zerolog.Nop())
	p.Poll(context.Background())

	src.set(nil, errors.New("database is locked"))
	p.Poll(context.Background())

	assert.Equal(t, []string{"a", "b"}, ids(store.Tracks()))
}

func TestPollUnchangedDoesNotNotify(t *testing.T) {
	src := &fakeSource{tracks: library()}
	store := playlist.NewStore()
	p := NewPoller(src, store, 0, "", zerolog.Nop())

	var notified atomic.Int32
	store.Subscribe(func([]playlist.Track) { notified.Add(1) })

	p.Poll(context.Background())
	p.Poll(context.Background())
	assert.Equal(t, int32(1), notified.Load())
}

func TestSetMoodRefreshes(t *testing.T) {
	src := &fakeSource{tracks: library()}
	store := playlist.NewStore()
	p := NewPoller(src, store, time.Hour, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	p.SetMood(" Energetic ")
	assert.Equal(t, "energetic", p.Mood())
	require.Eventually(t, func() bool {
		tracks := store.Tracks()
		return len(tracks) == 1 && tracks[0].ID == "b"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Contains(t, src.queriedMoods(), "energetic")
}

func TestRunPollsOnInterval(t *testing.T) {
	src := &fakeSource{tracks: library()[:1]}
	store := playlist.NewStore()
	p := NewPoller(src, store, 10*time.Millisecond, "", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	require.Eventually(t, func() bool { return store.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	src.set(library(), nil)
	require.Eventually(t, func() bool { return store.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracks.toml")
	require.NoError(t, os.WriteFile(path, []byte("# empty\n"), 0o644))

	var reloads atomic.Int32
	w := NewWatcher(path, 20*time.Millisecond, func(context.Context) error {
		reloads.Add(1)
		return nil
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register before writing
	time.Sleep(50 * time.Millisecond)

	// Unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	assert.Never(t, func() bool { return reloads.Load() > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	// A burst of writes collapses into one reload
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("[[track]]\n"), 0o644))
	}
	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return reloads.Load() > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing", "tracks.toml"), 0, func(context.Context) error {
		return nil
	}, zerolog.Nop())

	err := w.Run(context.Background())
	assert.Error(t, err)
}
