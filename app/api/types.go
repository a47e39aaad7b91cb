package api

import (
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
	"github.com/lysyi3m/price-comb/app/tasks"
)

type ReportInterface interface {
	Run(comparison database.Comparison) (string, error)
}

var _ ReportInterface = (*feed.ReportGenerator)(nil)

// CacheStats reports the size of the market estimate cache.
type CacheStats interface {
	Len() int
}

type Options struct {
	MaxItems       int
	MaxUploadBytes int64
	Version        string
}

type Handler struct {
	extractor      tasks.FeedExtractor
	comparisonRepo database.ComparisonStore
	vendorRepo     database.VendorStore
	report         ReportInterface
	configCache    *feed.ConfigCache
	cache          CacheStats
	scheduler      tasks.TaskSchedulerInterface
	maxItems       int
	maxUploadBytes int64
	version        string
}

// scanResult is one extracted product annotated with the run it was saved to.
type scanResult struct {
	feed.ProductRecord
	ComparisonID string `json:"comparison_id"`
}
