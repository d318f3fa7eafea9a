package media

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errNoSource = errors.New("no source loaded")

// playCall is one outstanding Play on the fake primitive
type playCall struct {
	source string
	result chan error
}

// settle completes the call with err (nil means playback started)
func (c *playCall) settle(err error) {
	c.result <- err
}

// fakePrimitive records calls and lets tests decide when Play settles.
// With manual unset, Play settles immediately with playErr.
type fakePrimitive struct {
	mu       sync.Mutex
	source   string
	loads    int
	playing  bool
	pauses   int
	position time.Duration
	duration time.Duration
	known    bool
	volume   float64
	seeks    []time.Duration
	cb       Callbacks

	manual  bool
	playErr error
	plays   chan *playCall
}

func newFakePrimitive() *fakePrimitive {
	return &fakePrimitive{plays: make(chan *playCall, 32)}
}

func (f *fakePrimitive) SetSource(uri string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = uri
	f.playing = false
	f.position = 0
	f.known = false
}

func (f *fakePrimitive) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakePrimitive) Load() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
}

func (f *fakePrimitive) Play(ctx context.Context) error {
	f.mu.Lock()
	manual, playErr, source := f.manual, f.playErr, f.source
	f.mu.Unlock()

	if source == "" {
		return errNoSource
	}

	if !manual {
		f.mu.Lock()
		f.playing = playErr == nil
		f.mu.Unlock()
		return playErr
	}

	call := &playCall{source: source, result: make(chan error, 1)}
	f.plays <- call

	select {
	case err := <-call.result:
		f.mu.Lock()
		if err == nil && f.source == source {
			f.playing = true
		}
		f.mu.Unlock()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakePrimitive) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.pauses++
}

func (f *fakePrimitive) CurrentTime() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakePrimitive) SetCurrentTime(pos time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = pos
	f.seeks = append(f.seeks, pos)
}

func (f *fakePrimitive) Duration() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration, f.known
}

func (f *fakePrimitive) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakePrimitive) SetCallbacks(cb Callbacks) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
}

func (f *fakePrimitive) callbacks() Callbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// emitMetadata reports a known duration, as a real primitive would once
// the source header is parsed
func (f *fakePrimitive) emitMetadata(d time.Duration) {
	f.mu.Lock()
	f.duration = d
	f.known = true
	f.mu.Unlock()
	f.callbacks().OnMetadataLoaded()
}

func (f *fakePrimitive) emitTimeUpdate(pos time.Duration) {
	f.mu.Lock()
	f.position = pos
	f.mu.Unlock()
	f.callbacks().OnTimeUpdate()
}

// emitCurrentTime reports whatever position the primitive holds
func (f *fakePrimitive) emitCurrentTime() {
	f.callbacks().OnTimeUpdate()
}

// emitEnded reports that the loaded source played to its end
func (f *fakePrimitive) emitEnded() {
	f.emitEndedFor(f.Source())
}

// emitEndedFor reports an end for a given source, which may no longer be
// the loaded one when the event is delivered late
func (f *fakePrimitive) emitEndedFor(source string) {
	f.callbacks().OnEnded(source)
}

func (f *fakePrimitive) emitError(err error) {
	f.callbacks().OnError(err)
}

// fakeSnapshot is a point-in-time copy of the fake's recorded state
type fakeSnapshot struct {
	source   string
	loads    int
	playing  bool
	pauses   int
	position time.Duration
	volume   float64
	seeks    []time.Duration
}

func (f *fakePrimitive) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeSnapshot{
		source:   f.source,
		loads:    f.loads,
		playing:  f.playing,
		pauses:   f.pauses,
		position: f.position,
		volume:   f.volume,
		seeks:    append([]time.Duration(nil), f.seeks...),
	}
}

// nextPlay waits for the next outstanding manual Play call
func (f *fakePrimitive) nextPlay(t *testing.T) *playCall {
	t.Helper()
	select {
	case c := <-f.plays:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Play")
		return nil
	}
}
