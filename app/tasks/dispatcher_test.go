package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/queue"
)

func fetchedWithItems(ids ...string) feed.FetchResult {
	result := feed.FetchResult{Status: feed.FetchStatusFetched}
	for _, id := range ids {
		result.Items.Created = append(result.Items.Created, feed.Item{ID: id, SourceID: "1"})
	}
	result.Items.CreatedCount = len(ids)
	return result
}

func scrapingSource(autoScrape bool) feed.Source {
	source := testSource("1")
	source.ScrapingEnabled = true
	source.AutoScrape = autoScrape
	return source
}

func TestDispatchTwoNewItems(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	dispatcher := NewDispatcher(enqueuer)

	report := dispatcher.Dispatch(context.Background(), scrapingSource(true), fetchedWithItems("a", "b"))

	if report.Enqueued != 2 {
		t.Errorf("Expected 2 enqueued, got %d", report.Enqueued)
	}
	jobs := enqueuer.enqueued()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	for _, job := range jobs {
		if job.Reason != queue.ReasonAuto {
			t.Errorf("Expected reason auto, got %s", job.Reason)
		}
		if job.SourceID != "1" {
			t.Errorf("Expected source id 1, got %s", job.SourceID)
		}
	}

	enqueuer = newFakeEnqueuer()
	report = NewDispatcher(enqueuer).Dispatch(context.Background(), scrapingSource(false), fetchedWithItems("a", "b"))
	if report.Enqueued != 0 || len(enqueuer.enqueued()) != 0 {
		t.Errorf("Expected nothing enqueued without auto scrape, got %d", report.Enqueued)
	}
}

func TestDispatchGate(t *testing.T) {
	disabled := scrapingSource(true)
	disabled.ScrapingEnabled = false

	notModified := fetchedWithItems("a")
	notModified.Status = feed.FetchStatusNotModified

	tests := []struct {
		name   string
		source feed.Source
		result feed.FetchResult
	}{
		{"scraping disabled", disabled, fetchedWithItems("a")},
		{"not fetched", scrapingSource(true), notModified},
		{"no new items", scrapingSource(true), fetchedWithItems()},
	}

	for _, tt := range tests {
		enqueuer := newFakeEnqueuer()
		report := NewDispatcher(enqueuer).Dispatch(context.Background(), tt.source, tt.result)
		if report.Enqueued != 0 || len(enqueuer.enqueued()) != 0 {
			t.Errorf("%s: expected nothing enqueued, got %d", tt.name, report.Enqueued)
		}
	}
}

func TestDispatchSkipsScrapedItems(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	result := fetchedWithItems("a", "b", "c")
	scrapedAt := time.Now()
	result.Items.Created[1].ScrapedAt = &scrapedAt

	report := NewDispatcher(enqueuer).Dispatch(context.Background(), scrapingSource(true), result)

	if report.Enqueued != 2 || report.Skipped != 1 {
		t.Errorf("Expected 2 enqueued and 1 skipped, got %d and %d", report.Enqueued, report.Skipped)
	}
	for _, job := range enqueuer.enqueued() {
		if job.ItemID == "b" {
			t.Error("Expected scraped item not to be enqueued")
		}
	}
}

func TestDispatchIsolatesFailures(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	enqueuer.failFor["3"] = errQueueDown

	report := NewDispatcher(enqueuer).Dispatch(context.Background(), scrapingSource(true), fetchedWithItems(ids...))

	if report.Enqueued != 9 {
		t.Errorf("Expected 9 enqueued despite one failure, got %d", report.Enqueued)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("Expected 1 failure, got %d", len(report.Failures))
	}
	if report.Failures[0].ItemID != "3" || !errors.Is(report.Failures[0], errQueueDown) {
		t.Errorf("Expected failure for item 3 wrapping the queue error, got %v", report.Failures[0])
	}
}

func TestDispatchAlreadyEnqueuedIsNotAFailure(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	enqueuer.inFlight["a"] = true

	report := NewDispatcher(enqueuer).Dispatch(context.Background(), scrapingSource(true), fetchedWithItems("a", "b"))

	if report.AlreadyQueued != 1 || report.Enqueued != 1 || len(report.Failures) != 0 {
		t.Errorf("Expected 1 enqueued, 1 already queued and no failures, got %+v", report)
	}
}

func TestDispatchItemsManualReason(t *testing.T) {
	enqueuer := newFakeEnqueuer()
	items := fetchedWithItems("a").Items.Created

	NewDispatcher(enqueuer).DispatchItems(context.Background(), scrapingSource(false), items, queue.ReasonManual)

	jobs := enqueuer.enqueued()
	if len(jobs) != 1 || jobs[0].Reason != queue.ReasonManual {
		t.Errorf("Expected one manual job, got %+v", jobs)
	}
}
