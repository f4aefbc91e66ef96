package feed

import (
	"time"
)

// Source and item records

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
	HealthPaused    HealthStatus = "paused"
)

type Source struct {
	ID   string // Database UUID
	Name string // Configuration identifier derived from filename

	FeedURL                  string
	WebsiteURL               string
	FetchIntervalMinutes     int
	Active                   bool
	AutoScrape               bool
	ScrapingEnabled          bool
	RequiresJavascript       bool
	AdaptiveFetchingEnabled  bool
	HealthAutoPauseThreshold int
	ItemsRetentionDays       int
	MaxItems                 int
	ScraperAdapter           string
	TimeoutSeconds           int

	HealthStatus            HealthStatus
	ConsecutiveFailureCount int
	LastFetchedAt           *time.Time
	NextFetchAt             *time.Time
	LastErrorMessage        string

	// Validators from the last 2xx response, sent back as conditional headers
	ETag         string
	LastModified string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Item struct {
	ID          string
	SourceID    string
	DedupKey    string
	GUID        string
	Title       string
	Link        string
	PublishedAt *time.Time
	CreatedAt   time.Time
	ScrapedAt   *time.Time // nil until the scrape job stores content
	Content     string
	ScrapeError string
}

// ParsedItem is one entry yielded by a Parser, before it is reconciled
// against the store.
type ParsedItem struct {
	GUID        string
	Title       string
	Link        string
	Description string
	PublishedAt *time.Time
}

// Fetch outcome

type FetchStatus string

const (
	FetchStatusFetched        FetchStatus = "fetched"
	FetchStatusNotModified    FetchStatus = "not_modified"
	FetchStatusTransportError FetchStatus = "transport_error"
	FetchStatusParseError     FetchStatus = "parse_error"
	FetchStatusTimeout        FetchStatus = "timeout"
)

// Succeeded reports whether the status counts as a healthy attempt.
func (s FetchStatus) Succeeded() bool {
	return s == FetchStatusFetched || s == FetchStatusNotModified
}

type ItemProcessing struct {
	CreatedCount int
	Created      []Item // newly created items in feed order
}

type FetchResult struct {
	Status       FetchStatus
	HTTPStatus   int // 0 when no response was received
	ErrorMessage string
	ParsedCount  int
	Items        ItemProcessing

	ETag         string
	LastModified string
}

// Configuration types

type Config struct {
	Name       string         // Derived from filename (without .yml extension)
	URL        string         `yaml:"url"`
	WebsiteURL string         `yaml:"website_url"`
	Settings   ConfigSettings `yaml:"settings"`
}

type ConfigSettings struct {
	Active                   *bool  `yaml:"active"` // defaults to true when omitted
	FetchIntervalMinutes     int    `yaml:"fetch_interval_minutes"`
	Timeout                  int    `yaml:"timeout"` // seconds
	AdaptiveFetching         bool   `yaml:"adaptive_fetching"`
	HealthAutoPauseThreshold int    `yaml:"health_auto_pause_threshold"`
	ScrapingEnabled          bool   `yaml:"scraping_enabled"`
	AutoScrape               bool   `yaml:"auto_scrape"`
	RequiresJavascript       bool   `yaml:"requires_javascript"`
	ScraperAdapter           string `yaml:"scraper_adapter"`
	ItemsRetentionDays       int    `yaml:"items_retention_days"`
	MaxItems                 int    `yaml:"max_items"`
}

func (s ConfigSettings) IsActive() bool {
	return s.Active == nil || *s.Active
}
