package history

import (
	"time"
)

// Listening rules deciding when a play counts
const (
	// MinimumTrackDuration is the shortest track that can count as a listen (30 seconds)
	MinimumTrackDuration = 30 * time.Second

	// ListenPercentage is the share of the track that must be heard (50%)
	ListenPercentage = 0.5

	// MaxListenThreshold caps the time that needs to be heard (4 minutes)
	MaxListenThreshold = 4 * time.Minute
)

// CountsAsListen reports whether a play should be recorded:
// 1. A known duration must be at least 30 seconds
// 2. The track must have been heard for 50% of its duration or 4 minutes,
// whichever comes first
//
// When the duration is unknown (streams) the 4 minute threshold applies.
func CountsAsListen(trackDuration time.Duration, known bool, heard time.Duration) bool {
	threshold := ListenThreshold(trackDuration, known)
	if threshold < 0 {
		return false
	}
	return heard >= threshold
}

// ListenThreshold returns the heard time at which a play counts, or a
// negative value when it never can
func ListenThreshold(trackDuration time.Duration, known bool) time.Duration {
	if !known {
		return MaxListenThreshold
	}

	// Too short to ever count
	if trackDuration < MinimumTrackDuration {
		return time.Duration(-1)
	}

	threshold := time.Duration(float64(trackDuration) * ListenPercentage)
	if threshold > MaxListenThreshold {
		threshold = MaxListenThreshold
	}
	return threshold
}
