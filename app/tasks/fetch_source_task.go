package tasks

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lysyi3m/feed-warden/app/feed"
)

type FetchSourceTask struct {
	Task
	Source   feed.Source
	pipeline *Pipeline
	onDone   func(*FetchOutcome, error)
}

func NewFetchSourceTask(source feed.Source, pipeline *Pipeline, onDone func(*FetchOutcome, error)) *FetchSourceTask {
	return &FetchSourceTask{
		Task:     NewTask(TaskTypeFetchSource, source.Name),
		Source:   source,
		pipeline: pipeline,
		onDone:   onDone,
	}
}

// Release gives the lease back for a task that will never run.
func (t *FetchSourceTask) Release() {
	t.pipeline.Leases().Release(t.Source.ID)
}

// Execute re-reads the source under the lease taken at selection time and
// skips it when it is no longer fetchable or no longer due.
func (t *FetchSourceTask) Execute(ctx context.Context) error {
	source, err := t.pipeline.Reload(ctx, t.Source.ID)
	if err != nil {
		t.Release()
		if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrSourceNotFound) {
			slog.Debug("Source no longer fetchable, skipping", "source", t.Source.Name, "reason", err)
			return nil
		}
		return err
	}
	if source.NextFetchAt != nil && source.NextFetchAt.After(t.pipeline.now()) {
		t.Release()
		slog.Debug("Source no longer due, skipping", "source", source.Name, "next_fetch_at", *source.NextFetchAt)
		return nil
	}
	t.Source = *source

	outcome, err := t.pipeline.Process(ctx, t.Source)
	if t.onDone != nil {
		t.onDone(outcome, err)
	}
	if err != nil {
		return err
	}

	result := outcome.Result
	attrs := []any{
		"type", "FetchSource",
		"source", t.Source.Name,
		"duration", t.GetDuration(),
		"status", string(result.Status),
		"health", string(outcome.Health.Status),
		"next_fetch_at", outcome.NextFetchAt,
	}

	if result.Status.Succeeded() {
		attrs = append(attrs,
			"parsed", result.ParsedCount,
			"new", result.Items.CreatedCount,
			"enqueued", outcome.Dispatch.Enqueued,
			"already_queued", outcome.Dispatch.AlreadyQueued,
			"enqueue_failures", len(outcome.Dispatch.Failures))
		slog.Info("Task completed", attrs...)
	} else {
		attrs = append(attrs,
			"http_status", result.HTTPStatus,
			"failures", outcome.Health.ConsecutiveFailureCount,
			"error", result.ErrorMessage)
		slog.Warn("Task completed", attrs...)
	}

	return nil
}
