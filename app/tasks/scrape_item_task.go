package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-warden/app/queue"
)

type ScrapeItemTask struct {
	Task
	Job      queue.Job
	store    ScrapeStore
	resolver ScraperResolver
}

func NewScrapeItemTask(job queue.Job, store ScrapeStore, resolver ScraperResolver) *ScrapeItemTask {
	return &ScrapeItemTask{
		Task:     NewTask(TaskTypeScrapeItem, job.ItemID),
		Job:      job,
		store:    store,
		resolver: resolver,
	}
}

func (t *ScrapeItemTask) Execute(ctx context.Context) error {
	item, err := t.store.GetItem(ctx, t.Job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}
	if item == nil {
		slog.Debug("Item no longer exists, skipping scrape", "item_id", t.Job.ItemID)
		return nil
	}
	if item.ScrapedAt != nil {
		slog.Debug("Item already scraped, skipping", "item_id", item.ID)
		return nil
	}

	source, err := t.store.GetSource(ctx, item.SourceID)
	if err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}
	if source == nil || !source.ScrapingEnabled {
		slog.Debug("Scraping disabled for source, skipping", "item_id", item.ID, "source_id", item.SourceID)
		return nil
	}

	scraper, adapter, err := t.resolver.Resolve(source.ScraperAdapter, source.RequiresJavascript)
	if err != nil {
		t.markFailed(ctx, item.ID, err)
		return fmt.Errorf("failed to resolve scraper: %w", err)
	}

	content, err := scraper.Scrape(ctx, item.Link)
	if err != nil {
		t.markFailed(ctx, item.ID, err)
		return fmt.Errorf("failed to scrape %s: %w", item.Link, err)
	}

	if err := t.store.MarkItemScraped(ctx, item.ID, content, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store scraped content: %w", err)
	}

	slog.Info("Task completed",
		"type", "ScrapeItem",
		"source", source.Name,
		"item_id", item.ID,
		"adapter", adapter,
		"reason", string(t.Job.Reason),
		"duration", t.GetDuration(),
		"content_length", len(content))

	return nil
}

func (t *ScrapeItemTask) markFailed(ctx context.Context, itemID string, cause error) {
	if err := t.store.MarkItemScrapeFailed(context.WithoutCancel(ctx), itemID, cause.Error()); err != nil {
		slog.Error("Failed to record scrape failure", "item_id", itemID, "error", err)
	}
}
