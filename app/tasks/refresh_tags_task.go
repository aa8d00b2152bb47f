package tasks

import (
	"context"
	"log/slog"

	"github.com/feedstash/feedstash/app/tags"
)

// RefreshTagsTask reloads the tag mapping table and the corpus usage
// snapshot, garbage-collecting unused auto-mappings. Failures are logged and
// the next cycle tries again; ingestion is never blocked on tag maintenance.
type RefreshTagsTask struct {
	Task
	mapper *tags.Mapper
}

func NewRefreshTagsTask(mapper *tags.Mapper) *RefreshTagsTask {
	return &RefreshTagsTask{
		Task:   NewTask(TaskTypeRefreshTags, ""),
		mapper: mapper,
	}
}

func (t *RefreshTagsTask) Execute(ctx context.Context) error {
	if err := t.mapper.Refresh(ctx); err != nil {
		return err
	}

	slog.Debug("Task completed",
		"type", "RefreshTags",
		"duration", t.GetDuration())

	return nil
}
