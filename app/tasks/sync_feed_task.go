package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedstash/feedstash/app/database"
	"github.com/feedstash/feedstash/app/feed"
)

// SyncFeedTask runs one reconciliation pass for one feed: fetch raw feed
// bytes, parse them into the canonical form, diff against the persisted item
// set, evict and create items, commit feed metadata. Failures are recorded
// on the feed record and never propagate past this task.
type SyncFeedTask struct {
	Task
	FeedConfig *feed.Config
	Force      bool
	fetcher    *feed.Fetcher
	parser     *feed.Parser
	reconciler *feed.Reconciler
	feedRepo   *database.FeedRepository
	itemRepo   *database.ItemRepository
}

func NewSyncFeedTask(feedName string, feedConfig *feed.Config, force bool,
	fetcher *feed.Fetcher, parser *feed.Parser, reconciler *feed.Reconciler,
	feedRepo *database.FeedRepository, itemRepo *database.ItemRepository) *SyncFeedTask {
	return &SyncFeedTask{
		Task:       NewTask(TaskTypeSyncFeed, feedName),
		FeedConfig: feedConfig,
		Force:      force,
		fetcher:    fetcher,
		parser:     parser,
		reconciler: reconciler,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
	}
}

func (t *SyncFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	record, err := t.feedRepo.GetFeed(ctx, t.FeedName)
	if err != nil {
		return err
	}
	if record == nil {
		slog.Warn("Feed not registered, skipping", "feed", t.FeedName)
		return nil
	}

	rec := record.Record()
	if rec.Suspended {
		slog.Debug("Feed suspended, skipping", "feed", t.FeedName)
		return nil
	}
	if !t.Force && !t.reconciler.Due(rec) {
		slog.Debug("Feed not due yet", "feed", t.FeedName)
		return nil
	}

	timeout := time.Duration(t.FeedConfig.Settings.Timeout) * time.Second

	data, err := t.fetcher.Run(ctx, t.FeedConfig.URL, timeout)
	if err != nil {
		t.reconciler.RecordFailure(ctx, t.FeedName, err)
		slog.Warn("Feed fetch failed", "feed", t.FeedName, "error", err)
		return nil
	}

	canonical, err := t.parser.Run(data, t.FeedConfig.URL)
	if err != nil {
		t.reconciler.RecordFailure(ctx, t.FeedName, err)
		slog.Warn("Feed parse failed", "feed", t.FeedName, "error", err)
		return nil
	}

	imageURL := ""
	if canonical.Image != nil {
		imageURL = canonical.Image.URL
	}
	err = t.feedRepo.UpdateFeedMetadata(ctx, t.FeedName,
		canonical.Title, canonical.Link, canonical.Description, imageURL)
	if err != nil {
		return err
	}

	existing, err := t.itemRepo.ListRecords(ctx, t.FeedName)
	if err != nil {
		return err
	}

	created, err := t.reconciler.Run(ctx, rec, canonical, existing, t.Force)
	if err != nil {
		// Already committed to the feed record; other feeds are unaffected.
		slog.Error("Reconciliation failed", "feed", t.FeedName, "created", created, "error", err)
		return nil
	}

	slog.Info("Task completed",
		"type", "SyncFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", len(canonical.Items),
		"new", created,
		"poll_interval", canonical.AvgPostInterval)

	return nil
}
