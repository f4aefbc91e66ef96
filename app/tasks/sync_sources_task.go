package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// SyncSourcesTask writes every loaded source configuration into the store
// and deactivates sources whose configuration file is gone. Health and
// schedule state of existing sources are kept.
type SyncSourcesTask struct {
	Task
	configs ConfigSource
	store   SyncStore
}

func NewSyncSourcesTask(configs ConfigSource, store SyncStore) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:    NewTask(TaskTypeSyncSources, "all"),
		configs: configs,
		store:   store,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	configs := t.configs.GetConfigs()
	names := make([]string, 0, len(configs))
	synced := 0

	for _, config := range configs {
		names = append(names, config.Name)

		if _, err := t.store.UpsertSource(ctx, config.ToSource()); err != nil {
			slog.Error("Task failed", "type", "SyncSources", "source", config.Name, "error", err)
			return fmt.Errorf("failed to sync source config to database: %w", err)
		}
		synced++
	}

	deactivated, err := t.store.DeactivateMissingSources(ctx, names)
	if err != nil {
		return fmt.Errorf("failed to deactivate removed sources: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSources",
		"duration", t.GetDuration(),
		"synced", synced,
		"deactivated", deactivated)

	return nil
}
