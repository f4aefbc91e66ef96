package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/queue"
)

// DispatchReport counts the outcome of handing items to the scrape queue.
type DispatchReport struct {
	Enqueued      int
	AlreadyQueued int
	Skipped       int // already scraped
	Failures      []*EnqueueError
}

// Dispatcher hands newly discovered items to the scrape queue.
type Dispatcher struct {
	enqueuer ScrapeEnqueuer
}

// NewDispatcher creates a dispatcher that enqueues through enqueuer.
func NewDispatcher(enqueuer ScrapeEnqueuer) *Dispatcher {
	return &Dispatcher{enqueuer: enqueuer}
}

// ShouldAutoScrape reports whether a fetch result triggers automatic scraping.
func ShouldAutoScrape(source feed.Source, result feed.FetchResult) bool {
	return result.Status == feed.FetchStatusFetched &&
		source.ScrapingEnabled &&
		source.AutoScrape &&
		result.Items.CreatedCount > 0
}

// Dispatch enqueues the items created by a fetch with the auto reason. It
// does nothing unless ShouldAutoScrape holds.
func (d *Dispatcher) Dispatch(ctx context.Context, source feed.Source, result feed.FetchResult) DispatchReport {
	if !ShouldAutoScrape(source, result) {
		return DispatchReport{}
	}
	return d.DispatchItems(ctx, source, result.Items.Created, queue.ReasonAuto)
}

// DispatchItems enqueues every unscraped item. A failed enqueue is recorded
// and the remaining items are still attempted.
func (d *Dispatcher) DispatchItems(ctx context.Context, source feed.Source, items []feed.Item, reason queue.Reason) DispatchReport {
	var report DispatchReport

	for _, item := range items {
		if item.ScrapedAt != nil {
			report.Skipped++
			continue
		}

		outcome, err := d.enqueuer.Enqueue(ctx, queue.Job{
			ItemID:     item.ID,
			SourceID:   source.ID,
			Reason:     reason,
			EnqueuedAt: time.Now().UTC(),
		})
		if err != nil {
			enqueueErr := &EnqueueError{ItemID: item.ID, Err: err}
			slog.Warn("Failed to enqueue scrape job", "source", source.Name, "item_id", item.ID, "error", err)
			report.Failures = append(report.Failures, enqueueErr)
			continue
		}

		switch outcome {
		case queue.AlreadyEnqueued:
			report.AlreadyQueued++
		default:
			report.Enqueued++
		}
	}

	return report
}
