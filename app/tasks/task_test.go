package tasks

import (
	"testing"
	"time"
)

func TestNewTask(t *testing.T) {
	task := NewTask(TaskTypeSyncFeed, "test")

	if task.ID == "" {
		t.Error("Expected non-empty task ID")
	}
	if task.Type != TaskTypeSyncFeed {
		t.Errorf("Expected sync_feed type, got: %s", task.Type)
	}
	if task.FeedName != "test" {
		t.Errorf("Expected feed name 'test', got: %s", task.FeedName)
	}
	if task.RetryCount != 0 {
		t.Errorf("Expected 0 retry count, got: %d", task.RetryCount)
	}
	if task.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected max retries %d, got: %d", DefaultMaxRetries, task.MaxRetries)
	}
}

func TestTaskRetry(t *testing.T) {
	task := NewTask(TaskTypeDownloadContent, "test")

	for i := 0; i < DefaultMaxRetries; i++ {
		if !task.CanRetry() {
			t.Fatalf("Expected retry %d to be allowed", i)
		}
		task.IncrementRetryCount()
	}

	if task.CanRetry() {
		t.Error("Expected retries exhausted after max attempts")
	}
	if task.GetRetryCount() != DefaultMaxRetries {
		t.Errorf("Expected retry count %d, got: %d", DefaultMaxRetries, task.GetRetryCount())
	}
}

func TestTaskDuration(t *testing.T) {
	task := NewTask(TaskTypeRefreshTags, "")

	if task.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	task.Start()
	time.Sleep(10 * time.Millisecond)

	if task.GetDuration() <= 0 {
		t.Error("Expected positive duration after start")
	}
}
