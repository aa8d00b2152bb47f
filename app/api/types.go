package api

import (
	"github.com/feedstash/feedstash/app/database"
	"github.com/feedstash/feedstash/app/feed"
	"github.com/feedstash/feedstash/app/tasks"
)

type Handler struct {
	feedRepo    *database.FeedRepository
	itemRepo    *database.ItemRepository
	configCache *feed.ConfigCache
	fetcher     *feed.Fetcher
	parser      *feed.Parser
	reconciler  *feed.Reconciler
	scheduler   tasks.TaskSchedulerInterface
}
