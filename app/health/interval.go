package health

import (
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
)

const (
	// MaxBackoffMultiplier caps the 2^failures growth of the interval.
	MaxBackoffMultiplier = 16
	// MaxInterval is the hard ceiling for a backed-off interval.
	MaxInterval = 7 * 24 * time.Hour
)

// NextInterval returns how long to wait before the next fetch of source,
// given its already-updated health fields. The result never drops below the
// configured base interval.
func NextInterval(source feed.Source) time.Duration {
	minutes := source.FetchIntervalMinutes
	if minutes <= 0 {
		minutes = feed.DefaultFetchIntervalMinutes
	}
	base := time.Duration(minutes) * time.Minute

	if !source.AdaptiveFetchingEnabled {
		return base
	}

	interval := base * time.Duration(backoffMultiplier(source.ConsecutiveFailureCount))
	if interval > MaxInterval {
		interval = MaxInterval
	}
	if interval < base {
		interval = base
	}
	return interval
}

func backoffMultiplier(failures int) int {
	multiplier := 1
	for i := 0; i < failures && multiplier < MaxBackoffMultiplier; i++ {
		multiplier *= 2
	}
	if multiplier > MaxBackoffMultiplier {
		multiplier = MaxBackoffMultiplier
	}
	return multiplier
}
