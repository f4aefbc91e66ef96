package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/health"
)

const persistTimeout = 10 * time.Second

type FetchOutcome struct {
	Result      feed.FetchResult
	Health      health.Fields
	NextFetchAt time.Time
	Dispatch    DispatchReport
}

// Pipeline runs one complete attempt for a source whose lease the caller
// already holds: fetch, health update, reschedule, then scrape dispatch.
// The lease is released once the source state is persisted.
type Pipeline struct {
	store      Store
	executor   *FetchExecutor
	dispatcher *Dispatcher
	leases     *LeaseSet
	now        func() time.Time
}

func NewPipeline(store Store, executor *FetchExecutor, dispatcher *Dispatcher, leases *LeaseSet) *Pipeline {
	return &Pipeline{
		store:      store,
		executor:   executor,
		dispatcher: dispatcher,
		leases:     leases,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) Leases() *LeaseSet {
	return p.leases
}

// Reload reads the current state of a source whose lease the caller holds
// and checks that it may still be fetched.
func (p *Pipeline) Reload(ctx context.Context, sourceID string) (*feed.Source, error) {
	source, err := p.store.GetSource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load source: %w", err)
	}
	if source == nil {
		return nil, ErrSourceNotFound
	}
	if err := CheckFetchable(*source); err != nil {
		return nil, err
	}
	return source, nil
}

// Process runs the attempt on source, which must have been read under the
// lease. Invalid state and cancellation return before anything is written.
func (p *Pipeline) Process(ctx context.Context, source feed.Source) (*FetchOutcome, error) {
	released := false
	release := func() {
		if !released {
			p.leases.Release(source.ID)
			released = true
		}
	}
	defer release()

	result, runErr := p.executor.Run(ctx, source)
	if errors.Is(runErr, ErrInvalidState) || errors.Is(runErr, context.Canceled) {
		return nil, runErr
	}

	now := p.now()

	// Source state is written even when ctx has run out, so every finished
	// attempt leaves a next fetch time behind.
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if runErr != nil {
		// Health is left alone; the validators are kept so the next fetch
		// sees the full feed again.
		outcome := &FetchOutcome{Result: result, Health: health.FieldsOf(source)}
		outcome.NextFetchAt = now.Add(health.NextInterval(source))
		if err := p.store.UpdateSourceSchedule(persistCtx, source.ID, outcome.NextFetchAt, source.ETag, source.LastModified); err != nil {
			slog.Error("Failed to persist source schedule", "source", source.Name, "error", err)
		}
		release()

		// Items created before the store failed are not new on the next
		// fetch, so they are dispatched now.
		outcome.Dispatch = p.dispatcher.Dispatch(ctx, source, result)
		return outcome, runErr
	}

	fields := health.Observe(source, result, now)
	updated := fields.Apply(source)
	nextFetchAt := now.Add(health.NextInterval(updated))
	etag, lastModified := validators(source, result)

	if err := p.store.UpdateSourceHealth(persistCtx, source.ID, fields); err != nil {
		return nil, fmt.Errorf("failed to persist source health: %w", err)
	}
	if err := p.store.UpdateSourceSchedule(persistCtx, source.ID, nextFetchAt, etag, lastModified); err != nil {
		return nil, fmt.Errorf("failed to persist source schedule: %w", err)
	}

	if fields.Status != source.HealthStatus {
		logHealthTransition(source, fields)
	}

	release()

	outcome := &FetchOutcome{
		Result:      result,
		Health:      fields,
		NextFetchAt: nextFetchAt,
	}
	outcome.Dispatch = p.dispatcher.Dispatch(ctx, updated, result)

	return outcome, nil
}

// validators picks the conditional GET values to send on the next fetch.
func validators(source feed.Source, result feed.FetchResult) (string, string) {
	switch result.Status {
	case feed.FetchStatusFetched:
		return result.ETag, result.LastModified
	case feed.FetchStatusNotModified:
		etag, lastModified := source.ETag, source.LastModified
		if result.ETag != "" {
			etag = result.ETag
		}
		if result.LastModified != "" {
			lastModified = result.LastModified
		}
		return etag, lastModified
	default:
		return source.ETag, source.LastModified
	}
}

func logHealthTransition(source feed.Source, fields health.Fields) {
	attrs := []any{
		"source", source.Name,
		"from", string(source.HealthStatus),
		"to", string(fields.Status),
		"failures", fields.ConsecutiveFailureCount,
	}

	switch fields.Status {
	case feed.HealthPaused:
		slog.Warn("Source paused after repeated failures", append(attrs, "error", fields.LastErrorMessage)...)
	case feed.HealthUnhealthy:
		slog.Warn("Source unhealthy", append(attrs, "error", fields.LastErrorMessage)...)
	default:
		slog.Info("Source health changed", attrs...)
	}
}
