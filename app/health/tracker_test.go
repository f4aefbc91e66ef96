package health

import (
	"testing"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
)

func newSource(threshold int) feed.Source {
	return feed.Source{
		ID:                       "src-1",
		Active:                   true,
		FetchIntervalMinutes:     360,
		AdaptiveFetchingEnabled:  true,
		HealthAutoPauseThreshold: threshold,
		HealthStatus:             feed.HealthHealthy,
	}
}

func failed(msg string) feed.FetchResult {
	return feed.FetchResult{Status: feed.FetchStatusTransportError, ErrorMessage: msg}
}

func TestPauseGraceLiteral(t *testing.T) {
	if PauseGrace != 1 {
		t.Errorf("Expected PauseGrace 1, got %d", PauseGrace)
	}
}

func TestObserveThreeFailuresThenPause(t *testing.T) {
	source := newSource(3)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	expected := []struct {
		count  int
		status feed.HealthStatus
	}{
		{1, feed.HealthDegraded},
		{2, feed.HealthDegraded},
		{3, feed.HealthUnhealthy},
		{4, feed.HealthPaused},
	}

	for i, want := range expected {
		fields := Observe(source, failed("connection refused"), now)
		source = fields.Apply(source)

		if source.ConsecutiveFailureCount != want.count {
			t.Errorf("Attempt %d: expected failure count %d, got %d", i+1, want.count, source.ConsecutiveFailureCount)
		}
		if source.HealthStatus != want.status {
			t.Errorf("Attempt %d: expected status %s, got %s", i+1, want.status, source.HealthStatus)
		}
		if source.LastErrorMessage != "connection refused" {
			t.Errorf("Attempt %d: expected error message to be recorded, got '%s'", i+1, source.LastErrorMessage)
		}
		if source.LastFetchedAt == nil || !source.LastFetchedAt.Equal(now) {
			t.Errorf("Attempt %d: expected last fetched at %v, got %v", i+1, now, source.LastFetchedAt)
		}
	}
}

func TestObservePausedIsTerminal(t *testing.T) {
	source := newSource(3)
	source.HealthStatus = feed.HealthPaused
	source.ConsecutiveFailureCount = 4
	source.LastErrorMessage = "timeout"

	for _, result := range []feed.FetchResult{
		{Status: feed.FetchStatusFetched},
		failed("again"),
	} {
		fields := Observe(source, result, time.Now())
		if fields.Status != feed.HealthPaused {
			t.Errorf("Expected paused to stay paused after %s, got %s", result.Status, fields.Status)
		}
		if fields.ConsecutiveFailureCount != 4 {
			t.Errorf("Expected failure count to stay 4, got %d", fields.ConsecutiveFailureCount)
		}
	}

	reset := Reset()
	source = reset.Apply(source)
	if source.HealthStatus != feed.HealthHealthy || source.ConsecutiveFailureCount != 0 || source.LastErrorMessage != "" {
		t.Errorf("Expected reset to healthy with zero failures, got %+v", reset)
	}
}

func TestObserveSuccessResetsCount(t *testing.T) {
	for _, status := range []feed.FetchStatus{feed.FetchStatusFetched, feed.FetchStatusNotModified} {
		source := newSource(3)
		source.HealthStatus = feed.HealthUnhealthy
		source.ConsecutiveFailureCount = 3
		source.LastErrorMessage = "HTTP error: 500"

		fields := Observe(source, feed.FetchResult{Status: status}, time.Now())

		if fields.Status != feed.HealthHealthy {
			t.Errorf("%s: expected healthy, got %s", status, fields.Status)
		}
		if fields.ConsecutiveFailureCount != 0 {
			t.Errorf("%s: expected failure count 0, got %d", status, fields.ConsecutiveFailureCount)
		}
		if fields.LastErrorMessage != "" {
			t.Errorf("%s: expected error to be cleared, got '%s'", status, fields.LastErrorMessage)
		}
	}
}

func TestObserveFailureCountMonotonic(t *testing.T) {
	source := newSource(10)
	statuses := []feed.FetchStatus{
		feed.FetchStatusTransportError,
		feed.FetchStatusParseError,
		feed.FetchStatusTimeout,
		feed.FetchStatusTransportError,
	}

	previous := 0
	for _, status := range statuses {
		source = Observe(source, feed.FetchResult{Status: status}, time.Now()).Apply(source)
		if source.ConsecutiveFailureCount < previous {
			t.Fatalf("Expected non-decreasing failure count, went from %d to %d", previous, source.ConsecutiveFailureCount)
		}
		previous = source.ConsecutiveFailureCount
	}

	if previous != len(statuses) {
		t.Errorf("Expected failure count %d, got %d", len(statuses), previous)
	}
	if source.LastErrorMessage != string(feed.FetchStatusTransportError) {
		t.Errorf("Expected status name as fallback error message, got '%s'", source.LastErrorMessage)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		failures  int
		threshold int
		want      feed.HealthStatus
	}{
		{0, 3, feed.HealthHealthy},
		{1, 3, feed.HealthDegraded},
		{2, 3, feed.HealthDegraded},
		{3, 3, feed.HealthUnhealthy},
		{4, 3, feed.HealthPaused},
		{9, 3, feed.HealthPaused},
		{1, 1, feed.HealthUnhealthy},
		{2, 1, feed.HealthPaused},
		{4, 0, feed.HealthDegraded}, // falls back to the default threshold of 5
	}

	for _, tt := range tests {
		if got := StatusFor(tt.failures, tt.threshold); got != tt.want {
			t.Errorf("StatusFor(%d, %d): expected %s, got %s", tt.failures, tt.threshold, tt.want, got)
		}
	}
}
