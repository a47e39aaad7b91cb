package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// FlushCacheTask writes the estimate cache to disk regardless of the
// per-write flush cadence.
type FlushCacheTask struct {
	Task
	cache CacheFlusher
}

func NewFlushCacheTask(cache CacheFlusher) *FlushCacheTask {
	return &FlushCacheTask{
		Task:  NewTask(TaskTypeFlushCache, ""),
		cache: cache,
	}
}

func (t *FlushCacheTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.cache.Flush(); err != nil {
		return fmt.Errorf("failed to flush estimate cache: %w", err)
	}

	slog.Debug("Task completed", "type", "FlushCache", "duration", t.GetDuration())
	return nil
}
