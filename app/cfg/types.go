package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath   string
	FeedsDir string

	// HTTP API
	Port         string
	APIAccessKey string

	// Scheduling
	WorkerCount       int
	ScrapeWorkerCount int
	SchedulerInterval int // seconds
	FetchTimeout      int // seconds, used when a source sets none
	RetentionSchedule string

	// Scrape queue
	QueueBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	InFlightTTL   time.Duration
	BrowserScrape bool

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) Location() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}
