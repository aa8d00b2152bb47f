package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/feedstash/feedstash/app/database"
	"github.com/feedstash/feedstash/app/feed"
)

const downloadBatchSize = 10

// DownloadContentTask fetches the linked article for items whose feed opted
// into content download and stores the readable body. One item's failure is
// recorded on that item and the batch continues.
type DownloadContentTask struct {
	Task
	FeedConfig *feed.Config
	fetcher    *feed.Fetcher
	extractor  *feed.Extractor
	itemRepo   *database.ItemRepository
}

func NewDownloadContentTask(feedName string, feedConfig *feed.Config,
	fetcher *feed.Fetcher, extractor *feed.Extractor,
	itemRepo *database.ItemRepository) *DownloadContentTask {
	return &DownloadContentTask{
		Task:       NewTask(TaskTypeDownloadContent, feedName),
		FeedConfig: feedConfig,
		fetcher:    fetcher,
		extractor:  extractor,
		itemRepo:   itemRepo,
	}
}

func (t *DownloadContentTask) Execute(ctx context.Context) error {
	items, err := t.itemRepo.GetItemsForDownload(ctx, t.FeedName, downloadBatchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	timeout := time.Duration(t.FeedConfig.Settings.Timeout) * time.Second
	succeeded, failed := 0, 0

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		content, err := t.downloadOne(ctx, item.Link, timeout)
		if err != nil {
			failed++
			slog.Warn("Article download failed", "feed", t.FeedName, "item", item.GUID, "error", err)
			if err := t.itemRepo.UpdateItemDownload(ctx, item.ID, "", database.DownloadFailed); err != nil {
				return err
			}
			continue
		}

		if err := t.itemRepo.UpdateItemDownload(ctx, item.ID, content, database.DownloadSuccess); err != nil {
			return err
		}
		succeeded++
	}

	slog.Info("Task completed",
		"type", "DownloadContent",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"succeeded", succeeded,
		"failed", failed)

	return nil
}

func (t *DownloadContentTask) downloadOne(ctx context.Context, url string, timeout time.Duration) (string, error) {
	data, err := t.fetcher.Run(ctx, url, timeout)
	if err != nil {
		return "", err
	}
	return t.extractor.Run(data)
}
