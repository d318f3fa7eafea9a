package media

import (
	"context"
	"time"
)

// Primitive is the external audio facility driven by Sync. Implementations
// must be safe for concurrent use: Play runs on its own goroutine while
// other methods are called from the reconciler.
type Primitive interface {
	// SetSource replaces the loaded source. An empty uri unloads it.
	SetSource(uri string)

	// Source returns the currently loaded source ("" when unloaded)
	Source() string

	// Load starts loading the current source. Metadata arrives later
	// through Callbacks.OnMetadataLoaded.
	Load()

	// Play starts or resumes playback, blocking until playback has begun
	// or was rejected (autoplay policy, decode or network failure).
	// Calling Play while already playing returns nil.
	Play(ctx context.Context) error

	// Pause stops playback at the current position. It never fails.
	Pause()

	// CurrentTime returns the playback position
	CurrentTime() time.Duration

	// SetCurrentTime moves the playback position
	SetCurrentTime(pos time.Duration)

	// Duration returns the source length once known
	Duration() (time.Duration, bool)

	// SetVolume sets output volume in [0, 1]
	SetVolume(v float64)

	// SetCallbacks installs the event handlers. Callbacks are invoked from
	// the primitive's own goroutines, never synchronously from inside one
	// of the methods above and never while holding a lock those methods
	// need.
	SetCallbacks(cb Callbacks)
}

// Callbacks are the events a Primitive reports back
type Callbacks struct {
	OnTimeUpdate     func()
	OnMetadataLoaded func()
	OnEnded          func(source string) // source that played to its end
	OnError          func(err error)
}
