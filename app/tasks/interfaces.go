package tasks

import (
	"context"

	"github.com/lysyi3m/price-comb/app/feed"
)

// TaskSchedulerInterface is what main and the API need to run background vendor work.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	VendorRefreshTasks(vendorConfig *feed.Config) []TaskInterface
}

// FeedExtractor turns a fetched vendor document into product records.
type FeedExtractor interface {
	Run(ctx context.Context, data []byte, maxItems int) ([]feed.ProductRecord, error)
}

// CacheFlusher persists the market estimate cache.
type CacheFlusher interface {
	Flush() error
}

var _ FeedExtractor = (*feed.Extractor)(nil)
