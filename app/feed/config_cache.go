package feed

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Scraper adapter names accepted in source configuration.
const (
	ScraperReadability = "readability"
	ScraperRaw         = "raw"
	ScraperBrowser     = "browser"
)

const (
	DefaultFetchIntervalMinutes     = 60
	DefaultTimeoutSeconds           = 30
	DefaultHealthAutoPauseThreshold = 5
	DefaultMaxItems                 = 100
	DefaultItemsRetentionDays       = 30
)

type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		sourceName := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := cc.LoadConfig(sourceName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "source", sourceName, "active", config.Settings.IsActive(), "fetch_interval_minutes", config.Settings.FetchIntervalMinutes)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(sourceName string) (*Config, error) {
	configFile := cc.getConfigFilePath(sourceName)
	sourceConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	sourceConfig.Name = sourceName

	if err := cc.validateConfig(sourceConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[sourceConfig.Name] = sourceConfig

	return sourceConfig, nil
}

func (cc *ConfigCache) GetConfig(sourceName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	sourceConfig, ok := cc.cache[sourceName]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", sourceName)
	}
	return sourceConfig, nil
}

// GetConfigs returns the cached configurations sorted by name.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		configs = append(configs, v)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sourceConfig Config
	if err := yaml.Unmarshal(data, &sourceConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	s := &sourceConfig.Settings
	if s.FetchIntervalMinutes == 0 {
		s.FetchIntervalMinutes = DefaultFetchIntervalMinutes
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeoutSeconds
	}
	if s.HealthAutoPauseThreshold == 0 {
		s.HealthAutoPauseThreshold = DefaultHealthAutoPauseThreshold
	}
	if s.MaxItems == 0 {
		s.MaxItems = DefaultMaxItems
	}
	if s.ItemsRetentionDays == 0 {
		s.ItemsRetentionDays = DefaultItemsRetentionDays
	}
	if s.ScraperAdapter == "" {
		s.ScraperAdapter = ScraperReadability
	}

	return &sourceConfig, nil
}

func (cc *ConfigCache) validateConfig(sourceConfig *Config) error {
	if sourceConfig == nil {
		return fmt.Errorf("sourceConfig is nil")
	}

	requiredFields := map[string]string{
		"source name": sourceConfig.Name,
		"source URL":  sourceConfig.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	positiveFields := map[string]int{
		"fetch interval minutes":      sourceConfig.Settings.FetchIntervalMinutes,
		"timeout":                     sourceConfig.Settings.Timeout,
		"health auto pause threshold": sourceConfig.Settings.HealthAutoPauseThreshold,
		"max items":                   sourceConfig.Settings.MaxItems,
		"items retention days":        sourceConfig.Settings.ItemsRetentionDays,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	switch sourceConfig.Settings.ScraperAdapter {
	case ScraperReadability, ScraperRaw, ScraperBrowser:
	default:
		return fmt.Errorf("unknown scraper adapter: %s", sourceConfig.Settings.ScraperAdapter)
	}

	if sourceConfig.Settings.AutoScrape && !sourceConfig.Settings.ScrapingEnabled {
		slog.Warn("auto_scrape has no effect while scraping is disabled", "source", sourceConfig.Name)
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(sourceName string) string {
	return filepath.Join(cc.feedsDir, sourceName+".yml")
}

// ToSource maps a configuration onto a fresh Source record. Health and
// schedule fields are left at their zero values for the store to fill in.
func (c *Config) ToSource() Source {
	return Source{
		Name:                     c.Name,
		FeedURL:                  c.URL,
		WebsiteURL:               c.WebsiteURL,
		FetchIntervalMinutes:     c.Settings.FetchIntervalMinutes,
		Active:                   c.Settings.IsActive(),
		AutoScrape:               c.Settings.AutoScrape,
		ScrapingEnabled:          c.Settings.ScrapingEnabled,
		RequiresJavascript:       c.Settings.RequiresJavascript,
		AdaptiveFetchingEnabled:  c.Settings.AdaptiveFetching,
		HealthAutoPauseThreshold: c.Settings.HealthAutoPauseThreshold,
		ItemsRetentionDays:       c.Settings.ItemsRetentionDays,
		MaxItems:                 c.Settings.MaxItems,
		ScraperAdapter:           c.Settings.ScraperAdapter,
		TimeoutSeconds:           c.Settings.Timeout,
	}
}
