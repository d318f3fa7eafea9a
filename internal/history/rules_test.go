package history

import (
	"testing"
	"time"
)

func TestCountsAsListen(t *testing.T) {
	tests := []struct {
		name          string
		trackDuration time.Duration
		known         bool
		heard         time.Duration
		want          bool
		description   string
	}{
		{
			name:          "track too short (29 seconds)",
			trackDuration: 29 * time.Second,
			known:         true,
			heard:         29 * time.Second,
			want:          false,
			description:   "tracks under 30 seconds never count",
		},
		{
			name:          "30 second track, heard 15 seconds",
			trackDuration: 30 * time.Second,
			known:         true,
			heard:         15 * time.Second,
			want:          true,
			description:   "half of a 30 second track counts",
		},
		{
			name:          "30 second track, heard 14 seconds",
			trackDuration: 30 * time.Second,
			known:         true,
			heard:         14 * time.Second,
			want:          false,
			description:   "under half does not count",
		},
		{
			name:          "3 minute track, heard 90 seconds",
			trackDuration: 3 * time.Minute,
			known:         true,
			heard:         90 * time.Second,
			want:          true,
			description:   "50% of a 3 minute track counts",
		},
		{
			name:          "10 minute track, heard 4 minutes",
			trackDuration: 10 * time.Minute,
			known:         true,
			heard:         4 * time.Minute,
			want:          true,
			description:   "long tracks count at the 4 minute cap",
		},
		{
			name:          "1 hour track, heard 3 minutes",
			trackDuration: time.Hour,
			known:         true,
			heard:         3 * time.Minute,
			want:          false,
			description:   "long tracks under the cap do not count",
		},
		{
			name:        "unknown duration, heard 4 minutes",
			known:       false,
			heard:       4 * time.Minute,
			want:        true,
			description: "streams count after 4 minutes",
		},
		{
			name:        "unknown duration, heard 1 minute",
			known:       false,
			heard:       time.Minute,
			want:        false,
			description: "streams under 4 minutes do not count",
		},
		{
			name:          "not heard at all",
			trackDuration: 3 * time.Minute,
			known:         true,
			want:          false,
			description:   "unplayed tracks never count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountsAsListen(tt.trackDuration, tt.known, tt.heard)
			if got != tt.want {
				t.Errorf("%s: CountsAsListen(%v, %v, %v) = %v, want %v",
					tt.description,
					tt.trackDuration,
					tt.known,
					tt.heard,
					got,
					tt.want,
				)
			}
		})
	}
}

func TestListenThreshold(t *testing.T) {
	tests := []struct {
		name          string
		trackDuration time.Duration
		known         bool
		expected      time.Duration
	}{
		{"track too short", 29 * time.Second, true, time.Duration(-1)},
		{"exactly 30 seconds", 30 * time.Second, true, 15 * time.Second},
		{"3 minute track", 3 * time.Minute, true, 90 * time.Second},
		{"8 minute track", 8 * time.Minute, true, 4 * time.Minute},
		{"9 minute track", 9 * time.Minute, true, 4 * time.Minute},
		{"unknown duration", 0, false, 4 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListenThreshold(tt.trackDuration, tt.known); got != tt.expected {
				t.Errorf("ListenThreshold(%v, %v) = %v, want %v", tt.trackDuration, tt.known, got, tt.expected)
			}
		})
	}
}
