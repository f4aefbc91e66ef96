package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionTask deletes items older than each source's retention period.
type RetentionTask struct {
	Task
	store RetentionStore
	now   time.Time
}

func NewRetentionTask(store RetentionStore, now time.Time) *RetentionTask {
	return &RetentionTask{
		Task:  NewTask(TaskTypeRetention, "all"),
		store: store,
		now:   now.UTC(),
	}
}

func (t *RetentionTask) Execute(ctx context.Context) error {
	sources, err := t.store.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	var total int64
	for _, source := range sources {
		if source.ItemsRetentionDays <= 0 {
			continue
		}

		cutoff := t.now.AddDate(0, 0, -source.ItemsRetentionDays)
		deleted, err := t.store.DeleteItemsOlderThan(ctx, source.ID, cutoff)
		if err != nil {
			return fmt.Errorf("failed to prune items for %s: %w", source.Name, err)
		}

		if deleted > 0 {
			slog.Debug("Pruned expired items", "source", source.Name, "deleted", deleted, "cutoff", cutoff)
		}
		total += deleted
	}

	slog.Info("Task completed",
		"type", "Retention",
		"duration", t.GetDuration(),
		"sources", len(sources),
		"deleted", total)

	return nil
}
