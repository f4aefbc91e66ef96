package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/health"
	"github.com/lysyi3m/feed-warden/app/queue"
	"github.com/lysyi3m/feed-warden/app/scrape"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to drive background processing.
//
//	scheduler := NewScheduler(store, pipeline, dispatcher, opts)
//	scheduler.AddStartupTask(NewSyncSourcesTask(configCache, store))
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	RetryNow(ctx context.Context, sourceID string) (*FetchOutcome, error)
	ResetHealth(ctx context.Context, sourceID string) (*feed.Source, error)
	BulkScrape(ctx context.Context, sourceID string) (DispatchReport, error)
	Stats() SchedulerStats
}

// Store is the persistence used by the fetch pipeline.
type Store interface {
	GetSource(ctx context.Context, id string) (*feed.Source, error)
	ListDueSources(ctx context.Context, now time.Time) ([]feed.Source, error)
	UpdateSourceHealth(ctx context.Context, id string, fields health.Fields) error
	UpdateSourceSchedule(ctx context.Context, id string, nextFetchAt time.Time, etag, lastModified string) error
	ResetSourceHealth(ctx context.Context, id string, now time.Time) error

	FindOrCreateItem(ctx context.Context, sourceID, dedupKey string, parsed feed.ParsedItem) (*feed.Item, bool, error)
	ListUnscrapedItems(ctx context.Context, sourceID string, limit int) ([]feed.Item, error)
}

type SyncStore interface {
	UpsertSource(ctx context.Context, source feed.Source) (*feed.Source, error)
	DeactivateMissingSources(ctx context.Context, names []string) (int64, error)
}

type RetentionStore interface {
	ListSources(ctx context.Context) ([]feed.Source, error)
	DeleteItemsOlderThan(ctx context.Context, sourceID string, cutoff time.Time) (int64, error)
}

type ScrapeStore interface {
	GetSource(ctx context.Context, id string) (*feed.Source, error)
	GetItem(ctx context.Context, id string) (*feed.Item, error)
	MarkItemScraped(ctx context.Context, id, content string, scrapedAt time.Time) error
	MarkItemScrapeFailed(ctx context.Context, id, message string) error
}

type FeedFetcher interface {
	Fetch(ctx context.Context, req feed.FetchRequest) (*feed.FetchResponse, error)
}

type FeedParser interface {
	Parse(data []byte) ([]feed.ParsedItem, error)
}

type ConfigSource interface {
	GetConfigs() []*feed.Config
}

type ScrapeEnqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) (queue.Outcome, error)
}

// ScrapeQueue is the consumer side used by the scrape workers.
type ScrapeQueue interface {
	ScrapeEnqueuer
	Next(ctx context.Context) (queue.Job, error)
	Done(ctx context.Context, job queue.Job) error
}

type ScraperResolver interface {
	Resolve(adapter string, requiresJavascript bool) (scrape.Scraper, string, error)
}
