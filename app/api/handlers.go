package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/feed-warden/app/feed"
	"github.com/lysyi3m/feed-warden/app/tasks"
)

func NewHandler(store SourceReader, configs ConfigCounter, scheduler tasks.TaskSchedulerInterface,
	scrapeQueue QueueDepth, version string) *Handler {
	return &Handler{
		store:       store,
		configs:     configs,
		scheduler:   scheduler,
		scrapeQueue: scrapeQueue,
		version:     version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"scheduler": h.scheduler.Stats(),
	}

	if sourceCount, err := h.store.GetSourceCount(c.Request.Context()); err == nil {
		health["sources"] = sourceCount
	} else {
		slog.Error("Database error", "operation", "get_source_count", "error", err)
		health["status"] = "degraded"
	}

	if depth, err := h.scrapeQueue.Depth(c.Request.Context()); err == nil {
		health["scrape_queue_depth"] = depth
	} else {
		slog.Error("Scrape queue error", "operation", "depth", "error", err)
		health["status"] = "degraded"
	}

	health["loaded_configurations"] = h.configs.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSources(c *gin.Context) {
	sources, err := h.store.ListSources(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "list_sources", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	result := make([]map[string]interface{}, 0, len(sources))
	for _, source := range sources {
		result = append(result, sourceSummary(source))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"sources": result,
		"total":   len(result),
	})
}

func (h *Handler) APIGetSource(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	source, err := h.store.GetSource(ctx, id)
	if err != nil {
		slog.Error("Database error", "operation", "get_source", "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if source == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
		return
	}

	details := sourceSummary(*source)
	details["settings"] = map[string]interface{}{
		"adaptive_fetching":           source.AdaptiveFetchingEnabled,
		"health_auto_pause_threshold": source.HealthAutoPauseThreshold,
		"scraping_enabled":            source.ScrapingEnabled,
		"auto_scrape":                 source.AutoScrape,
		"requires_javascript":         source.RequiresJavascript,
		"scraper_adapter":             source.ScraperAdapter,
		"items_retention_days":        source.ItemsRetentionDays,
		"max_items":                   source.MaxItems,
		"timeout":                     (time.Duration(source.TimeoutSeconds) * time.Second).String(),
	}

	if total, unscraped, err := h.store.GetItemStats(ctx, source.ID); err == nil {
		details["items"] = map[string]interface{}{
			"total":     total,
			"scraped":   total - unscraped,
			"unscraped": unscraped,
		}
	}

	if items, err := h.store.ListItems(ctx, source.ID, recentItemsLimit); err == nil {
		recent := make([]map[string]interface{}, 0, len(items))
		for _, item := range items {
			recent = append(recent, map[string]interface{}{
				"id":           item.ID,
				"title":        item.Title,
				"link":         item.Link,
				"published_at": item.PublishedAt,
				"created_at":   item.CreatedAt,
				"scraped_at":   item.ScrapedAt,
				"scrape_error": item.ScrapeError,
			})
		}
		details["recent_items"] = recent
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIResetHealth(c *gin.Context) {
	id := c.Param("id")

	source, err := h.scheduler.ResetHealth(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "reset_health", id, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"source":  sourceSummary(*source),
	})
}

func (h *Handler) APIFetchSource(c *gin.Context) {
	id := c.Param("id")

	outcome, err := h.scheduler.RetryNow(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "fetch_source", id, err)
		return
	}

	result := outcome.Result
	c.JSON(http.StatusOK, gin.H{
		"success":       result.Status.Succeeded(),
		"status":        result.Status,
		"http_status":   result.HTTPStatus,
		"error":         result.ErrorMessage,
		"parsed":        result.ParsedCount,
		"new_items":     result.Items.CreatedCount,
		"health":        outcome.Health.Status,
		"failures":      outcome.Health.ConsecutiveFailureCount,
		"next_fetch_at": outcome.NextFetchAt,
		"dispatch":      dispatchSummary(outcome.Dispatch),
	})
}

func (h *Handler) APIScrapeSource(c *gin.Context) {
	id := c.Param("id")

	report, err := h.scheduler.BulkScrape(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "bulk_scrape", id, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"dispatch": dispatchSummary(report),
	})
}

func (h *Handler) writeError(c *gin.Context, operation, id string, err error) {
	switch {
	case errors.Is(err, tasks.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Source not found"})
	case errors.Is(err, tasks.ErrSourceBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Source is busy", "details": err.Error()})
	case errors.Is(err, tasks.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "Invalid source state", "details": err.Error()})
	default:
		slog.Error("Request failed", "operation", operation, "source_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "details": err.Error()})
	}
}

func sourceSummary(source feed.Source) map[string]interface{} {
	return map[string]interface{}{
		"id":                        source.ID,
		"name":                      source.Name,
		"url":                       source.FeedURL,
		"website_url":               source.WebsiteURL,
		"active":                    source.Active,
		"fetch_interval":            (time.Duration(source.FetchIntervalMinutes) * time.Minute).String(),
		"health_status":             source.HealthStatus,
		"consecutive_failure_count": source.ConsecutiveFailureCount,
		"last_error_message":        source.LastErrorMessage,
		"last_fetched_at":           source.LastFetchedAt,
		"next_fetch_at":             source.NextFetchAt,
		"updated_at":                source.UpdatedAt,
	}
}

func dispatchSummary(report tasks.DispatchReport) map[string]interface{} {
	failures := make([]map[string]string, 0, len(report.Failures))
	for _, failure := range report.Failures {
		failures = append(failures, map[string]string{
			"item_id": failure.ItemID,
			"error":   failure.Err.Error(),
		})
	}

	return map[string]interface{}{
		"enqueued":       report.Enqueued,
		"already_queued": report.AlreadyQueued,
		"skipped":        report.Skipped,
		"failures":       failures,
	}
}
