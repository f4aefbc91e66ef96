package api

import (
	"context"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/tasks"
)

// SourceReader is the read side of the store used by the API.
type SourceReader interface {
	ListSources(ctx context.Context) ([]feed.Source, error)
	GetSource(ctx context.Context, id string) (*feed.Source, error)
	GetSourceCount(ctx context.Context) (int, error)
	ListItems(ctx context.Context, sourceID string, limit int) ([]feed.Item, error)
	GetItemStats(ctx context.Context, sourceID string) (int, int, error)
}

type QueueDepth interface {
	Depth(ctx context.Context) (int64, error)
}

type ConfigCounter interface {
	GetConfigCount() int
}

var _ ConfigCounter = (*feed.ConfigCache)(nil)

type Handler struct {
	store       SourceReader
	configs     ConfigCounter
	scheduler   tasks.TaskSchedulerInterface
	scrapeQueue QueueDepth
	version     string
}

const recentItemsLimit = 20
