package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feedstash/feedstash/app/cfg"
	"github.com/feedstash/feedstash/app/database"
	"github.com/feedstash/feedstash/app/feed"
	"github.com/feedstash/feedstash/app/tags"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *feed.ConfigCache
	feedRepo    *database.FeedRepository
	itemRepo    *database.ItemRepository
	fetcher     *feed.Fetcher
	parser      *feed.Parser
	reconciler  *feed.Reconciler
	extractor   *feed.Extractor
	mapper      *tags.Mapper
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, feedRepo *database.FeedRepository,
	itemRepo *database.ItemRepository, fetcher *feed.Fetcher, parser *feed.Parser,
	reconciler *feed.Reconciler, extractor *feed.Extractor, mapper *tags.Mapper) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache: configCache,
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		fetcher:     fetcher,
		parser:      parser,
		reconciler:  reconciler,
		extractor:   extractor,
		mapper:      mapper,
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueTasks schedules one cycle: refresh the tag mapping snapshot first,
// then a sync pass per due feed and a content download pass where enabled.
func (s *Scheduler) enqueueTasks() {
	refreshTask := NewRefreshTagsTask(s.mapper)
	if err := s.EnqueueTask(refreshTask); err != nil {
		slog.Warn("Failed to enqueue RefreshTagsTask", "error", err)
	}

	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	slog.Debug("Scheduling feed tasks", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		record, err := s.feedRepo.GetFeed(s.ctx, feedConfig.Name)
		if err != nil {
			slog.Warn("Failed to get feed from database, skipping", "feed", feedConfig.Name, "error", err)
			continue
		}
		if record == nil {
			slog.Warn("Feed not found in database, skipping", "feed", feedConfig.Name)
			continue
		}
		if record.Suspended {
			slog.Debug("Feed suspended, skipping", "feed", feedConfig.Name)
			continue
		}

		if s.reconciler.Due(record.Record()) {
			syncTask := NewSyncFeedTask(feedConfig.Name, feedConfig, false,
				s.fetcher, s.parser, s.reconciler, s.feedRepo, s.itemRepo)
			if err := s.EnqueueTask(syncTask); err != nil {
				slog.Warn("Failed to enqueue SyncFeedTask", "feed", feedConfig.Name, "error", err)
			}
		}

		if feedConfig.Settings.DownloadContent {
			downloadTask := NewDownloadContentTask(feedConfig.Name, feedConfig,
				s.fetcher, s.extractor, s.itemRepo)
			if err := s.EnqueueTask(downloadTask); err != nil {
				slog.Warn("Failed to enqueue DownloadContentTask", "feed", feedConfig.Name, "error", err)
			}
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
