package scrape

import (
	"errors"
	"fmt"

	"github.com/lysyi3m/feed-warden/app/feed"
)

var ErrAdapterUnavailable = errors.New("scraper adapter unavailable")

type Registry struct {
	adapters map[string]Scraper
}

// NewRegistry wires the three adapters. A nil browser disables JavaScript
// rendering; sources that need it then fail to resolve.
func NewRegistry(readability, raw, browser Scraper) *Registry {
	adapters := map[string]Scraper{
		feed.ScraperReadability: readability,
		feed.ScraperRaw:         raw,
	}
	if browser != nil {
		adapters[feed.ScraperBrowser] = browser
	}
	return &Registry{adapters: adapters}
}

// Resolve picks the adapter for one job. requiresJavascript always selects
// the browser; an empty name means readability.
func (r *Registry) Resolve(adapter string, requiresJavascript bool) (Scraper, string, error) {
	name := adapter
	if requiresJavascript {
		name = feed.ScraperBrowser
	}
	if name == "" {
		name = feed.ScraperReadability
	}

	switch name {
	case feed.ScraperReadability, feed.ScraperRaw, feed.ScraperBrowser:
	default:
		return nil, name, fmt.Errorf("unknown scraper adapter: %s", name)
	}

	scraper, ok := r.adapters[name]
	if !ok || scraper == nil {
		return nil, name, fmt.Errorf("%w: %s", ErrAdapterUnavailable, name)
	}
	return scraper, name, nil
}
