package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/feedstash/feedstash/app/database"
	"github.com/feedstash/feedstash/app/feed"
	"github.com/feedstash/feedstash/app/tasks"
	"github.com/gin-gonic/gin"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo *database.FeedRepository,
	itemRepo *database.ItemRepository, fetcher *feed.Fetcher, parser *feed.Parser,
	reconciler *feed.Reconciler, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		configCache: configCache,
		fetcher:     fetcher,
		parser:      parser,
		reconciler:  reconciler,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		stats["feeds"] = feedCount
	}
	if itemCount, err := h.itemRepo.GetTotalItemCount(c.Request.Context()); err == nil {
		stats["items"] = itemCount
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":            feedConfig.Name,
			"url":             feedConfig.URL,
			"title":           "",
			"enabled":         feedConfig.Settings.Enabled,
			"retention_limit": feedConfig.Settings.RetentionLimit,
		}

		if record, err := h.feedRepo.GetFeed(c.Request.Context(), feedConfig.Name); err == nil && record != nil {
			feedInfo["title"] = record.Title
			feedInfo["status"] = record.Status
			feedInfo["status_marker"] = record.Status.Marker()
			feedInfo["status_message"] = record.StatusMessage
			feedInfo["suspended"] = record.Suspended
			feedInfo["poll_interval"] = record.PollInterval
			feedInfo["last_updated_at"] = record.LastUpdatedAt
		}

		if itemCount, err := h.itemRepo.GetItemCount(c.Request.Context(), feedConfig.Name); err == nil {
			feedInfo["item_count"] = itemCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedItems(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	record, err := h.feedRepo.GetFeed(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	items, err := h.itemRepo.ListItems(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]interface{}{
			"id":           item.ID,
			"guid":         item.GUID,
			"title":        item.Title,
			"link":         item.Link,
			"author":       item.Author,
			"published_at": item.PublishedAt.Format(time.RFC3339),
			"pinned":       item.Pinned,
			"tags":         item.Tags,
			"storage_ref":  item.StorageRef,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feed":   name,
		"status": record.Status.Marker(),
		"items":  payload,
		"total":  len(payload),
	})
}

// APISyncFeed enqueues a forced reconciliation pass, bypassing the poll
// interval check.
func (h *Handler) APISyncFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	syncTask := tasks.NewSyncFeedTask(name, feedConfig, true,
		h.fetcher, h.parser, h.reconciler, h.feedRepo, h.itemRepo)
	if err := h.scheduler.EnqueueTask(syncTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Sync scheduled", "feed": name})
}

func (h *Handler) APISuspendFeed(c *gin.Context) {
	h.setSuspended(c, true)
}

func (h *Handler) APIResumeFeed(c *gin.Context) {
	h.setSuspended(c, false)
}

func (h *Handler) setSuspended(c *gin.Context, suspended bool) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	record, err := h.feedRepo.GetFeed(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	if err := h.feedRepo.SetSuspended(c.Request.Context(), name, suspended); err != nil {
		slog.Error("Database error", "operation", "set_suspended", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feed": name, "suspended": suspended})
}

// APIPinItem and APIUnpinItem mutate the user-owned pinned flag. The
// reconciler only ever reads it.
func (h *Handler) APIPinItem(c *gin.Context) {
	h.setPinned(c, true)
}

func (h *Handler) APIUnpinItem(c *gin.Context) {
	h.setPinned(c, false)
}

func (h *Handler) setPinned(c *gin.Context, pinned bool) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item id"})
		return
	}

	if err := h.itemRepo.SetPinned(c.Request.Context(), itemID, pinned); err != nil {
		slog.Error("Database error", "operation", "set_pinned", "item", itemID, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"item": itemID, "pinned": pinned})
}
