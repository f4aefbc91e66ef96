package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/health"
)

const sourceColumns = `
	id, name, feed_url, website_url, fetch_interval_minutes, active,
	auto_scrape, scraping_enabled, requires_javascript, adaptive_fetching_enabled,
	health_auto_pause_threshold, items_retention_days, max_items, scraper_adapter,
	timeout_seconds, health_status, consecutive_failure_count, last_fetched_at,
	next_fetch_at, last_error_message, etag, last_modified, created_at, updated_at`

// SourceRepository handles database operations for sources
type SourceRepository struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// UpsertSource writes the configuration columns of a source, keyed by name.
// Health and schedule columns of an existing source are left untouched, and
// conditional GET validators are dropped when the feed URL changes.
func (r *SourceRepository) UpsertSource(ctx context.Context, source feed.Source) (*feed.Source, error) {
	now := time.Now().UTC()

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sources (
			id, name, feed_url, website_url, fetch_interval_minutes, active,
			auto_scrape, scraping_enabled, requires_javascript, adaptive_fetching_enabled,
			health_auto_pause_threshold, items_retention_days, max_items, scraper_adapter,
			timeout_seconds, health_status, consecutive_failure_count, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			etag = CASE WHEN sources.feed_url = excluded.feed_url THEN sources.etag ELSE '' END,
			last_modified = CASE WHEN sources.feed_url = excluded.feed_url THEN sources.last_modified ELSE '' END,
			feed_url = excluded.feed_url,
			website_url = excluded.website_url,
			fetch_interval_minutes = excluded.fetch_interval_minutes,
			active = excluded.active,
			auto_scrape = excluded.auto_scrape,
			scraping_enabled = excluded.scraping_enabled,
			requires_javascript = excluded.requires_javascript,
			adaptive_fetching_enabled = excluded.adaptive_fetching_enabled,
			health_auto_pause_threshold = excluded.health_auto_pause_threshold,
			items_retention_days = excluded.items_retention_days,
			max_items = excluded.max_items,
			scraper_adapter = excluded.scraper_adapter,
			timeout_seconds = excluded.timeout_seconds,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), source.Name, source.FeedURL, source.WebsiteURL, source.FetchIntervalMinutes,
		source.Active, source.AutoScrape, source.ScrapingEnabled, source.RequiresJavascript,
		source.AdaptiveFetchingEnabled, source.HealthAutoPauseThreshold, source.ItemsRetentionDays,
		source.MaxItems, source.ScraperAdapter, source.TimeoutSeconds, string(feed.HealthHealthy),
		now, now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert source: %w", err)
	}

	return r.GetSource(ctx, id)
}

// GetSource returns nil when no source has the given id.
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*feed.Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = ?`, id)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return source, nil
}

func (r *SourceRepository) GetSourceByName(ctx context.Context, name string) (*feed.Source, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by name: %w", err)
	}

	return source, nil
}

func (r *SourceRepository) ListSources(ctx context.Context) ([]feed.Source, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

// ListDueSources returns active, non-paused sources whose next fetch time
// has passed or was never set, oldest first.
func (r *SourceRepository) ListDueSources(ctx context.Context, now time.Time) ([]feed.Source, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM sources
		WHERE active = 1
		  AND health_status != ?
		  AND (next_fetch_at IS NULL OR next_fetch_at <= ?)
		ORDER BY next_fetch_at IS NOT NULL, next_fetch_at, name
	`, string(feed.HealthPaused), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get due sources: %w", err)
	}
	defer rows.Close()

	return collectSources(rows)
}

func (r *SourceRepository) UpdateSourceHealth(ctx context.Context, id string, fields health.Fields) error {
	var lastFetchedAt *time.Time
	if fields.LastFetchedAt != nil {
		t := fields.LastFetchedAt.UTC()
		lastFetchedAt = &t
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET health_status = ?, consecutive_failure_count = ?, last_error_message = ?,
		    last_fetched_at = ?, updated_at = ?
		WHERE id = ?
	`, string(fields.Status), fields.ConsecutiveFailureCount, fields.LastErrorMessage,
		lastFetchedAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update source health: %w", err)
	}

	return nil
}

// UpdateSourceSchedule stores the next fetch time together with the
// validators to send on that fetch.
func (r *SourceRepository) UpdateSourceSchedule(ctx context.Context, id string, nextFetchAt time.Time, etag, lastModified string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET next_fetch_at = ?, etag = ?, last_modified = ?, updated_at = ?
		WHERE id = ?
	`, nextFetchAt.UTC(), etag, lastModified, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update source schedule: %w", err)
	}

	return nil
}

// ResetSourceHealth makes a source healthy again and due immediately.
func (r *SourceRepository) ResetSourceHealth(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sources
		SET health_status = ?, consecutive_failure_count = 0, last_error_message = '',
		    next_fetch_at = ?, updated_at = ?
		WHERE id = ?
	`, string(feed.HealthHealthy), now.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reset source health: %w", err)
	}

	return nil
}

// DeactivateMissingSources marks every source whose name is not in names as
// inactive. It returns the number of sources changed.
func (r *SourceRepository) DeactivateMissingSources(ctx context.Context, names []string) (int64, error) {
	query := `UPDATE sources SET active = 0, updated_at = ? WHERE active = 1`
	args := []any{time.Now().UTC()}
	if len(names) > 0 {
		query += ` AND name NOT IN (?` + strings.Repeat(", ?", len(names)-1) + `)`
		for _, name := range names {
			args = append(args, name)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sources: %w", err)
	}

	return result.RowsAffected()
}

func (r *SourceRepository) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*feed.Source, error) {
	var source feed.Source
	var status string

	err := row.Scan(
		&source.ID, &source.Name, &source.FeedURL, &source.WebsiteURL, &source.FetchIntervalMinutes,
		&source.Active, &source.AutoScrape, &source.ScrapingEnabled, &source.RequiresJavascript,
		&source.AdaptiveFetchingEnabled, &source.HealthAutoPauseThreshold, &source.ItemsRetentionDays,
		&source.MaxItems, &source.ScraperAdapter, &source.TimeoutSeconds, &status,
		&source.ConsecutiveFailureCount, &source.LastFetchedAt, &source.NextFetchAt,
		&source.LastErrorMessage, &source.ETag, &source.LastModified, &source.CreatedAt, &source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.HealthStatus = feed.HealthStatus(status)
	return &source, nil
}

func collectSources(rows *sql.Rows) ([]feed.Source, error) {
	var sources []feed.Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}
