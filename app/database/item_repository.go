package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/feed-warden/app/feed"
)

const itemColumns = `
	id, source_id, dedup_key, guid, title, link, published_at, created_at,
	scraped_at, content, scrape_error`

// ItemRepository handles database operations for source items
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// FindOrCreateItem inserts the parsed item unless one with the same dedup key
// already exists for the source. Existing items are returned unchanged and
// created reports which of the two happened.
func (r *ItemRepository) FindOrCreateItem(ctx context.Context, sourceID, dedupKey string, parsed feed.ParsedItem) (*feed.Item, bool, error) {
	var publishedAt *time.Time
	if parsed.PublishedAt != nil {
		t := parsed.PublishedAt.UTC()
		publishedAt = &t
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO items (id, source_id, dedup_key, guid, title, link, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_id, dedup_key) DO NOTHING
	`, uuid.NewString(), sourceID, dedupKey, parsed.GUID, parsed.Title, parsed.Link,
		publishedAt, time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check inserted item: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE source_id = ? AND dedup_key = ?`,
		sourceID, dedupKey)
	item, err := scanItem(row)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load item: %w", err)
	}

	return item, affected > 0, nil
}

// GetItem returns nil when no item has the given id.
func (r *ItemRepository) GetItem(ctx context.Context, id string) (*feed.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// ListItems returns the newest items of a source.
func (r *ItemRepository) ListItems(ctx context.Context, sourceID string, limit int) ([]feed.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE source_id = ?
		ORDER BY created_at DESC, id
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// ListUnscrapedItems returns items of a source that have no scraped content
// yet, oldest first.
func (r *ItemRepository) ListUnscrapedItems(ctx context.Context, sourceID string, limit int) ([]feed.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE source_id = ? AND scraped_at IS NULL
		ORDER BY created_at, id
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unscraped items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

func (r *ItemRepository) MarkItemScraped(ctx context.Context, id, content string, scrapedAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE items SET content = ?, scraped_at = ?, scrape_error = '' WHERE id = ?
	`, content, scrapedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark item scraped: %w", err)
	}
	return nil
}

// MarkItemScrapeFailed records the error and leaves scraped_at unset so the
// item stays eligible for a later scrape.
func (r *ItemRepository) MarkItemScrapeFailed(ctx context.Context, id, message string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE items SET scrape_error = ? WHERE id = ?`, message, id)
	if err != nil {
		return fmt.Errorf("failed to mark item scrape failure: %w", err)
	}
	return nil
}

// DeleteItemsOlderThan removes items of a source created before cutoff.
func (r *ItemRepository) DeleteItemsOlderThan(ctx context.Context, sourceID string, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE source_id = ? AND created_at < ?`,
		sourceID, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired items: %w", err)
	}
	return result.RowsAffected()
}

// GetItemStats returns the total and unscraped item counts for a source.
func (r *ItemRepository) GetItemStats(ctx context.Context, sourceID string) (int, int, error) {
	var total, unscraped int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN scraped_at IS NULL THEN 1 ELSE 0 END), 0)
		FROM items WHERE source_id = ?
	`, sourceID).Scan(&total, &unscraped)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get item stats: %w", err)
	}
	return total, unscraped, nil
}

func scanItem(row rowScanner) (*feed.Item, error) {
	var item feed.Item
	err := row.Scan(
		&item.ID, &item.SourceID, &item.DedupKey, &item.GUID, &item.Title, &item.Link,
		&item.PublishedAt, &item.CreatedAt, &item.ScrapedAt, &item.Content, &item.ScrapeError,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func collectItems(rows *sql.Rows) ([]feed.Item, error) {
	var items []feed.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}
