// Package health holds the per-source health state machine and the adaptive
// fetch interval. Everything here is pure: callers persist the results.
package health

import (
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
)

// PauseGrace is the number of failed attempts past the auto-pause threshold
// before a source is paused. With a threshold of 3, the 3rd consecutive
// failure makes the source unhealthy and the 4th pauses it.
const PauseGrace = 1

// Fields are the health columns of a source written after each attempt.
type Fields struct {
	Status                  feed.HealthStatus
	ConsecutiveFailureCount int
	LastErrorMessage        string
	LastFetchedAt           *time.Time
}

func FieldsOf(source feed.Source) Fields {
	return Fields{
		Status:                  source.HealthStatus,
		ConsecutiveFailureCount: source.ConsecutiveFailureCount,
		LastErrorMessage:        source.LastErrorMessage,
		LastFetchedAt:           source.LastFetchedAt,
	}
}

// Apply returns a copy of source carrying the given health fields.
func (f Fields) Apply(source feed.Source) feed.Source {
	source.HealthStatus = f.Status
	source.ConsecutiveFailureCount = f.ConsecutiveFailureCount
	source.LastErrorMessage = f.LastErrorMessage
	source.LastFetchedAt = f.LastFetchedAt
	return source
}

// Reset is the initial healthy state, also used by manual health resets.
func Reset() Fields {
	return Fields{Status: feed.HealthHealthy}
}

// Observe maps one fetch outcome onto the source's next health fields.
// A paused source stays paused until Reset.
func Observe(source feed.Source, result feed.FetchResult, now time.Time) Fields {
	current := FieldsOf(source)
	if current.Status == feed.HealthPaused {
		return current
	}

	fetchedAt := now
	if result.Status.Succeeded() {
		return Fields{
			Status:        feed.HealthHealthy,
			LastFetchedAt: &fetchedAt,
		}
	}

	failures := current.ConsecutiveFailureCount + 1
	return Fields{
		Status:                  StatusFor(failures, source.HealthAutoPauseThreshold),
		ConsecutiveFailureCount: failures,
		LastErrorMessage:        errorMessage(result),
		LastFetchedAt:           &fetchedAt,
	}
}

// StatusFor classifies a consecutive failure count against a threshold.
func StatusFor(failures, threshold int) feed.HealthStatus {
	if threshold <= 0 {
		threshold = feed.DefaultHealthAutoPauseThreshold
	}

	switch {
	case failures <= 0:
		return feed.HealthHealthy
	case failures < threshold:
		return feed.HealthDegraded
	case failures < threshold+PauseGrace:
		return feed.HealthUnhealthy
	default:
		return feed.HealthPaused
	}
}

func errorMessage(result feed.FetchResult) string {
	if result.ErrorMessage != "" {
		return result.ErrorMessage
	}
	return string(result.Status)
}
