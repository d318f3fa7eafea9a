package playback

import (
	"math"
	"testing"
	"time"

	"github.com/jfmyers9/moodplayer/internal/playlist"
	"github.com/rs/zerolog"
)

func newTestController(t *testing.T, ids ...string) (*Controller, *playlist.Store) {
	t.Helper()
	store := playlist.NewStore()
	tracks := make([]playlist.Track, len(ids))
	for i, id := range ids {
		tracks[i] = playlist.Track{ID: id, Title: id, SourceURI: "file:///" + id + ".mp3"}
	}
	store.Replace(tracks)
	return NewController(store, zerolog.Nop()), store
}

func TestSelectTrackForcesPlaying(t *testing.T) {
	c, _ := newTestController(t, "A", "B")

	c.SetPlaying(false)
	c.SelectTrack("A")
	if in := c.Intent(); in.TrackID != "A" || !in.Playing {
		t.Fatalf("after select: %+v", in)
	}

	c.SetPlaying(false)
	c.SelectTrack("B")
	if !c.Intent().Playing {
		t.Error("SelectTrack did not set Playing=true from paused")
	}

	c.SelectTrack("B")
	if !c.Intent().Playing {
		t.Error("SelectTrack did not keep Playing=true when already playing")
	}
}

func TestSelectTrackClearsSeek(t *testing.T) {
	c, _ := newTestController(t, "A", "B")
	c.SelectTrack("A")
	c.Seek(30 * time.Second)

	c.SelectTrack("B")
	if in := c.Intent(); in.SeekPending || in.Seek != 0 {
		t.Errorf("seek not cleared: %+v", in)
	}
}

func TestSelectTrackAcceptsUnknownID(t *testing.T) {
	c, _ := newTestController(t, "A")
	c.SelectTrack("not-yet-loaded")
	if in := c.Intent(); in.TrackID != "not-yet-loaded" || !in.Playing {
		t.Errorf("intent = %+v", in)
	}
}

func TestReselectPublishes(t *testing.T) {
	c, _ := newTestController(t, "A")
	var got []Intent
	c.Subscribe(func(in Intent) { got = append(got, in) })

	c.SelectTrack("A")
	c.SelectTrack("A")

	if len(got) != 2 {
		t.Fatalf("notifications = %d, want 2", len(got))
	}
	if got[1].Selection <= got[0].Selection {
		t.Errorf("selection counter did not advance: %d -> %d", got[0].Selection, got[1].Selection)
	}
}

func TestNavigationScenario(t *testing.T) {
	c, _ := newTestController(t, "A", "B", "C")

	c.SelectTrack("B")
	if !c.Next() || c.Intent().TrackID != "C" {
		t.Fatalf("next from B = %q, want C", c.Intent().TrackID)
	}
	if !c.Next() || c.Intent().TrackID != "A" {
		t.Fatalf("next from C = %q, want A", c.Intent().TrackID)
	}
	if !c.Prev() || c.Intent().TrackID != "C" {
		t.Fatalf("prev from A = %q, want C", c.Intent().TrackID)
	}
}

func TestNavigationNoOps(t *testing.T) {
	tests := []struct {
		name  string
		ids   []string
		setup func(c *Controller, s *playlist.Store)
		want  string
	}{
		{
			name:  "nothing selected",
			ids:   []string{"A", "B"},
			setup: func(c *Controller, s *playlist.Store) {},
			want:  "",
		},
		{
			name: "current track removed from playlist",
			ids:  []string{"A", "B"},
			setup: func(c *Controller, s *playlist.Store) {
				c.SelectTrack("A")
				s.Replace([]playlist.Track{{ID: "B"}})
			},
			want: "A",
		},
		{
			name: "empty playlist",
			ids:  []string{"A"},
			setup: func(c *Controller, s *playlist.Store) {
				c.SelectTrack("A")
				s.Replace(nil)
			},
			want: "A",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := newTestController(t, tt.ids...)
			tt.setup(c, s)

			before := c.Intent()
			if c.Next() {
				t.Error("Next() = true, want false")
			}
			if c.Prev() {
				t.Error("Prev() = true, want false")
			}
			if after := c.Intent(); after != before || after.TrackID != tt.want {
				t.Errorf("intent changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestNavigationSurvivesReorder(t *testing.T) {
	c, s := newTestController(t, "A", "B", "C")
	c.SelectTrack("A")

	s.Replace([]playlist.Track{{ID: "C"}, {ID: "A"}, {ID: "B"}})
	c.Next()
	if got := c.Intent().TrackID; got != "B" {
		t.Errorf("next after reorder = %q, want B", got)
	}
}

func TestTogglePlayPause(t *testing.T) {
	t.Run("selects first track when nothing selected", func(t *testing.T) {
		c, _ := newTestController(t, "A", "B")
		c.TogglePlayPause()
		if in := c.Intent(); in.TrackID != "A" || !in.Playing {
			t.Errorf("intent = %+v", in)
		}
	})

	t.Run("flips playing when selected", func(t *testing.T) {
		c, _ := newTestController(t, "A")
		c.SelectTrack("A")
		c.TogglePlayPause()
		if c.Intent().Playing {
			t.Error("still playing after toggle")
		}
		c.TogglePlayPause()
		if !c.Intent().Playing {
			t.Error("not playing after second toggle")
		}
	})

	t.Run("no-op on empty playlist", func(t *testing.T) {
		c, _ := newTestController(t)
		calls := 0
		c.Subscribe(func(Intent) { calls++ })
		c.TogglePlayPause()
		if in := c.Intent(); in.HasTrack() || in.Playing || calls != 0 {
			t.Errorf("intent = %+v, notifications = %d", in, calls)
		}
	})
}

func TestSeek(t *testing.T) {
	c, _ := newTestController(t, "A")
	c.SelectTrack("A")
	c.SetPlaying(false)

	c.Seek(42 * time.Second)
	in := c.Intent()
	if in.Playing {
		t.Error("Seek changed Playing")
	}
	if !in.SeekPending || in.Seek != 42*time.Second {
		t.Errorf("seek = %v pending=%v", in.Seek, in.SeekPending)
	}

	pos, ok := c.TakeSeek()
	if !ok || pos != 42*time.Second {
		t.Errorf("TakeSeek() = %v, %v", pos, ok)
	}
	if _, ok := c.TakeSeek(); ok {
		t.Error("TakeSeek() returned a request twice")
	}

	c.Seek(-5 * time.Second)
	if pos, _ := c.TakeSeek(); pos != 0 {
		t.Errorf("negative seek = %v, want 0", pos)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{1.7, 1},
		{0.3, 0.3},
		{0, 0},
		{1, 1},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
	}

	for _, tt := range tests {
		c, _ := newTestController(t)
		c.SetVolume(tt.in)
		if got := c.Intent().Volume; got != tt.want {
			t.Errorf("SetVolume(%v) -> %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetVolumeIgnoresNaN(t *testing.T) {
	c, _ := newTestController(t)
	c.SetVolume(math.NaN())
	if got := c.Intent().Volume; got != DefaultVolume {
		t.Errorf("volume = %v, want %v", got, DefaultVolume)
	}
}

func TestClearAndCue(t *testing.T) {
	c, _ := newTestController(t, "A", "B")
	c.SelectTrack("A")
	c.Clear()
	if in := c.Intent(); in.HasTrack() || in.Playing {
		t.Errorf("after Clear: %+v", in)
	}

	c.Cue("B")
	if in := c.Intent(); in.TrackID != "B" || in.Playing {
		t.Errorf("after Cue: %+v", in)
	}
}

func TestUnchangedCommandDoesNotPublish(t *testing.T) {
	c, _ := newTestController(t, "A")
	c.SetVolume(0.5)

	calls := 0
	c.Subscribe(func(Intent) { calls++ })
	c.SetVolume(0.5)
	c.SetPlaying(false)

	if calls != 0 {
		t.Errorf("notifications = %d, want 0", calls)
	}
}

func TestSetPlayingIf(t *testing.T) {
	c, _ := newTestController(t, "A", "B")
	c.SelectTrack("A")
	snapshot := c.Intent()

	c.SelectTrack("B")
	if c.SetPlayingIf(snapshot, false) {
		t.Error("SetPlayingIf applied against a stale intent")
	}
	if !c.Intent().Playing {
		t.Error("stale SetPlayingIf paused the newer selection")
	}

	current := c.Intent()
	if !c.SetPlayingIf(current, false) {
		t.Error("SetPlayingIf rejected the current intent")
	}
	if c.Intent().Playing {
		t.Error("SetPlayingIf did not pause")
	}
}
