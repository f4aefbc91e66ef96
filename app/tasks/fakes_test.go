package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/health"
	"github.com/lysyi3m/feed-warden/app/queue"
	"github.com/lysyi3m/feed-warden/app/scrape"
)

type fakeStore struct {
	mu      sync.Mutex
	sources map[string]*feed.Source
	items   map[string]*feed.Item
	keys    map[string]string // source id + dedup key -> item id
	nextID  int

	findErr       error
	findErrAfter  int // calls that succeed before findErr is returned
	findCalls     int
	scheduleCalls int
	healthCalls   int
	scraped       map[string]string
	scrapeErrors  map[string]string

	afterGet func(id string) // runs once GetSource has copied the row
}

func newFakeStore(sources ...feed.Source) *fakeStore {
	s := &fakeStore{
		sources:      make(map[string]*feed.Source),
		items:        make(map[string]*feed.Item),
		keys:         make(map[string]string),
		scraped:      make(map[string]string),
		scrapeErrors: make(map[string]string),
	}
	for i := range sources {
		source := sources[i]
		s.sources[source.ID] = &source
	}
	return s
}

func (s *fakeStore) source(id string) feed.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.sources[id]
}

func (s *fakeStore) GetSource(ctx context.Context, id string) (*feed.Source, error) {
	s.mu.Lock()
	source, ok := s.sources[id]
	var copied feed.Source
	if ok {
		copied = *source
	}
	hook := s.afterGet
	s.mu.Unlock()

	if hook != nil {
		hook(id)
	}
	if !ok {
		return nil, nil
	}
	return &copied, nil
}

func (s *fakeStore) setSource(source feed.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.ID] = &source
}

func (s *fakeStore) ListSources(ctx context.Context) ([]feed.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sources []feed.Source
	for _, source := range s.sources {
		sources = append(sources, *source)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

func (s *fakeStore) ListDueSources(ctx context.Context, now time.Time) ([]feed.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []feed.Source
	for _, source := range s.sources {
		if !source.Active || source.HealthStatus == feed.HealthPaused {
			continue
		}
		if source.NextFetchAt != nil && source.NextFetchAt.After(now) {
			continue
		}
		due = append(due, *source)
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Name < due[j].Name })
	return due, nil
}

func (s *fakeStore) UpdateSourceHealth(ctx context.Context, id string, fields health.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.healthCalls++
	updated := fields.Apply(*s.sources[id])
	s.sources[id] = &updated
	return nil
}

func (s *fakeStore) UpdateSourceSchedule(ctx context.Context, id string, nextFetchAt time.Time, etag, lastModified string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduleCalls++
	source := s.sources[id]
	source.NextFetchAt = &nextFetchAt
	source.ETag = etag
	source.LastModified = lastModified
	return nil
}

func (s *fakeStore) ResetSourceHealth(ctx context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	source := s.sources[id]
	updated := health.Reset().Apply(*source)
	updated.LastFetchedAt = source.LastFetchedAt
	updated.NextFetchAt = &now
	s.sources[id] = &updated
	return nil
}

func (s *fakeStore) FindOrCreateItem(ctx context.Context, sourceID, dedupKey string, parsed feed.ParsedItem) (*feed.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.findCalls++
	if s.findErr != nil && s.findCalls > s.findErrAfter {
		return nil, false, s.findErr
	}

	if id, ok := s.keys[sourceID+"|"+dedupKey]; ok {
		item := *s.items[id]
		return &item, false, nil
	}

	s.nextID++
	item := &feed.Item{
		ID:          fmt.Sprintf("item-%d", s.nextID),
		SourceID:    sourceID,
		DedupKey:    dedupKey,
		GUID:        parsed.GUID,
		Title:       parsed.Title,
		Link:        parsed.Link,
		PublishedAt: parsed.PublishedAt,
		CreatedAt:   time.Now(),
	}
	s.items[item.ID] = item
	s.keys[sourceID+"|"+dedupKey] = item.ID

	copied := *item
	return &copied, true, nil
}

func (s *fakeStore) ListUnscrapedItems(ctx context.Context, sourceID string, limit int) ([]feed.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []feed.Item
	for _, item := range s.items {
		if item.SourceID == sourceID && item.ScrapedAt == nil {
			items = append(items, *item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *fakeStore) GetItem(ctx context.Context, id string) (*feed.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (s *fakeStore) MarkItemScraped(ctx context.Context, id, content string, scrapedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id].ScrapedAt = &scrapedAt
	s.items[id].Content = content
	s.scraped[id] = content
	return nil
}

func (s *fakeStore) MarkItemScrapeFailed(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[id].ScrapeError = message
	s.scrapeErrors[id] = message
	return nil
}

func (s *fakeStore) UpsertSource(ctx context.Context, source feed.Source) (*feed.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.sources {
		if existing.Name == source.Name {
			source.ID = existing.ID
			source = health.FieldsOf(*existing).Apply(source)
			source.NextFetchAt = existing.NextFetchAt
			*existing = source
			copied := *existing
			return &copied, nil
		}
	}

	s.nextID++
	source.ID = fmt.Sprintf("source-%d", s.nextID)
	source.HealthStatus = feed.HealthHealthy
	s.sources[source.ID] = &source
	copied := source
	return &copied, nil
}

func (s *fakeStore) DeactivateMissingSources(ctx context.Context, names []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(names))
	for _, name := range names {
		keep[name] = true
	}

	var changed int64
	for _, source := range s.sources {
		if source.Active && !keep[source.Name] {
			source.Active = false
			changed++
		}
	}
	return changed, nil
}

func (s *fakeStore) DeleteItemsOlderThan(ctx context.Context, sourceID string, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, item := range s.items {
		if item.SourceID == sourceID && item.CreatedAt.Before(cutoff) {
			delete(s.items, id)
			delete(s.keys, item.SourceID+"|"+item.DedupKey)
			deleted++
		}
	}
	return deleted, nil
}

// fakeFetcher serves a fixed response, or runs fn when set.
type fakeFetcher struct {
	mu       sync.Mutex
	resp     *feed.FetchResponse
	err      error
	fn       func(ctx context.Context, req feed.FetchRequest) (*feed.FetchResponse, error)
	calls    int
	requests []feed.FetchRequest
}

func (f *fakeFetcher) Fetch(ctx context.Context, req feed.FetchRequest) (*feed.FetchResponse, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	fn, resp, err := f.fn, f.resp, f.err
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeParser struct {
	items []feed.ParsedItem
	err   error
	calls int
}

func (p *fakeParser) Parse(data []byte) ([]feed.ParsedItem, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.items, nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	jobs     []queue.Job
	failFor  map[string]error
	inFlight map[string]bool
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{failFor: make(map[string]error), inFlight: make(map[string]bool)}
}

func (e *fakeEnqueuer) Enqueue(ctx context.Context, job queue.Job) (queue.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err, ok := e.failFor[job.ItemID]; ok {
		return "", err
	}
	if e.inFlight[job.ItemID] {
		return queue.AlreadyEnqueued, nil
	}
	e.inFlight[job.ItemID] = true
	e.jobs = append(e.jobs, job)
	return queue.Enqueued, nil
}

func (e *fakeEnqueuer) enqueued() []queue.Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]queue.Job(nil), e.jobs...)
}

type fakeScraper struct {
	content string
	err     error
	urls    []string
}

func (s *fakeScraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	s.urls = append(s.urls, pageURL)
	return s.content, s.err
}

type fakeResolver struct {
	scraper  scrape.Scraper
	err      error
	adapters []string
}

func (r *fakeResolver) Resolve(adapter string, requiresJavascript bool) (scrape.Scraper, string, error) {
	if requiresJavascript {
		adapter = feed.ScraperBrowser
	}
	r.adapters = append(r.adapters, adapter)
	if r.err != nil {
		return nil, adapter, r.err
	}
	return r.scraper, adapter, nil
}

var errQueueDown = errors.New("queue unavailable")

func testSource(id string) feed.Source {
	return feed.Source{
		ID:                       id,
		Name:                     "source-" + id,
		FeedURL:                  "https://example.com/" + id + ".xml",
		FetchIntervalMinutes:     360,
		Active:                   true,
		AdaptiveFetchingEnabled:  true,
		HealthAutoPauseThreshold: 3,
		MaxItems:                 100,
		TimeoutSeconds:           5,
		HealthStatus:             feed.HealthHealthy,
	}
}

func okResponse() *feed.FetchResponse {
	return &feed.FetchResponse{StatusCode: 200, Body: []byte("<rss/>"), ETag: `"v1"`}
}

func parsedItems(n int) []feed.ParsedItem {
	items := make([]feed.ParsedItem, n)
	for i := range items {
		items[i] = feed.ParsedItem{
			GUID:  fmt.Sprintf("guid-%d", i+1),
			Title: fmt.Sprintf("Item %d", i+1),
			Link:  fmt.Sprintf("https://example.com/items/%d", i+1),
		}
	}
	return items
}

type fakeConfigs struct {
	configs []*feed.Config
}

func (c *fakeConfigs) GetConfigs() []*feed.Config {
	return c.configs
}
