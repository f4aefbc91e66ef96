package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath   string `long:"db-path" env:"DB_PATH" default:"./data/feed-warden.db" description:"Path to the SQLite database file"`
	FeedsDir string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing source configuration files"`

	// HTTP API
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Scheduling
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent feed fetches"`
	ScrapeWorkerCount int    `long:"scrape-worker-count" env:"SCRAPE_WORKER_COUNT" default:"2" description:"Number of concurrent scrape jobs"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler tick interval in seconds"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Default fetch timeout in seconds"`
	RetentionSchedule string `long:"retention-schedule" env:"RETENTION_SCHEDULE" default:"0 3 * * *" description:"Cron schedule for pruning expired items"`

	// Scrape queue
	QueueBackend  string        `long:"queue-backend" env:"QUEUE_BACKEND" default:"memory" choice:"memory" choice:"redis" description:"Scrape queue backend"`
	RedisAddr     string        `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the redis queue backend"`
	RedisPassword string        `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int           `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	InFlightTTL   time.Duration `long:"inflight-ttl" env:"INFLIGHT_TTL" default:"1h" description:"Expiry of in-flight scrape markers"`
	BrowserScrape bool          `long:"browser-scrape" env:"BROWSER_SCRAPE" description:"Enable the headless browser scraper for JavaScript sources"`

	// Logging
	LogFile       string `long:"log-file" env:"LOG_FILE" description:"Also write logs to this file, rotated"`
	LogMaxSizeMB  int    `long:"log-max-size" env:"LOG_MAX_SIZE_MB" default:"50" description:"Rotate the log file after this many megabytes"`
	LogMaxBackups int    `long:"log-max-backups" env:"LOG_MAX_BACKUPS" default:"5" description:"Number of rotated log files to keep"`
	LogMaxAgeDays int    `long:"log-max-age" env:"LOG_MAX_AGE_DAYS" default:"28" description:"Days to keep rotated log files"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Feed Warden/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps and cron schedules (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads an optional .env file, then flags and environment.
// It returns nil, nil when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		WorkerCount:       raw.WorkerCount,
		ScrapeWorkerCount: raw.ScrapeWorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		FetchTimeout:      raw.FetchTimeout,
		RetentionSchedule: raw.RetentionSchedule,
		QueueBackend:      raw.QueueBackend,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		InFlightTTL:       raw.InFlightTTL,
		BrowserScrape:     raw.BrowserScrape,
		LogFile:           raw.LogFile,
		LogMaxSizeMB:      raw.LogMaxSizeMB,
		LogMaxBackups:     raw.LogMaxBackups,
		LogMaxAgeDays:     raw.LogMaxAgeDays,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	positive := map[string]int{
		"worker count":        cfg.WorkerCount,
		"scrape worker count": cfg.ScrapeWorkerCount,
		"scheduler interval":  cfg.SchedulerInterval,
		"fetch timeout":       cfg.FetchTimeout,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.QueueBackend == QueueRedis && cfg.RedisAddr == "" {
		return fmt.Errorf("redis address is required for the redis queue backend")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
