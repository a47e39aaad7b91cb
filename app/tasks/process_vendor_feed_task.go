package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
)

// Vendor feeds are bounded like uploads.
const maxFeedBytes = 64 << 20

type ProcessVendorFeedTask struct {
	Task
	VendorConfig   *feed.Config
	httpClient     *http.Client
	extractor      FeedExtractor
	filterer       *feed.Filterer
	comparisonRepo database.ComparisonStore
	vendorRepo     database.VendorStore
	userAgent      string
}

func NewProcessVendorFeedTask(vendorName string, vendorConfig *feed.Config, httpClient *http.Client, extractor FeedExtractor, filterer *feed.Filterer, comparisonRepo database.ComparisonStore, vendorRepo database.VendorStore, userAgent string) *ProcessVendorFeedTask {
	return &ProcessVendorFeedTask{
		Task:           NewTask(TaskTypeProcessVendorFeed, vendorName),
		VendorConfig:   vendorConfig,
		httpClient:     httpClient,
		extractor:      extractor,
		filterer:       filterer,
		comparisonRepo: comparisonRepo,
		vendorRepo:     vendorRepo,
		userAgent:      userAgent,
	}
}

func (t *ProcessVendorFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.VendorConfig.Settings.Enabled {
		slog.Debug("Vendor disabled, skipping", "vendor", t.VendorName)
		return nil
	}

	data, err := t.fetchFeed(ctx, t.VendorConfig.URL)
	if err != nil {
		return fmt.Errorf("failed to fetch vendor feed: %w", err)
	}

	records, err := t.extractor.Run(ctx, data, t.VendorConfig.Settings.MaxItems)
	if err != nil {
		var malformed *feed.MalformedInputError
		if errors.As(err, &malformed) {
			// The same bytes would fail again; wait for the next refresh instead.
			if recordErr := t.recordFailedFetch(); recordErr != nil {
				slog.Warn("Failed to record vendor fetch", "vendor", t.VendorName, "error", recordErr)
			}
			return Permanent(fmt.Errorf("failed to extract vendor feed: %w", err))
		}
		return fmt.Errorf("failed to extract vendor feed: %w", err)
	}

	kept := t.filterer.Run(records, t.VendorConfig)

	title := t.VendorName
	if metadata := feed.DetectMetadata(data); metadata != nil && metadata.Title != "" {
		title = metadata.Title
	}

	comparison, err := t.comparisonRepo.SaveComparison(feed.ToComparison(t.VendorConfig.URL, title, t.VendorName, kept))
	if err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}

	if err := t.vendorRepo.UpdateVendorFetch(t.VendorName, title, &comparison.ID, t.nextFetch()); err != nil {
		return fmt.Errorf("failed to update vendor fetch state: %w", err)
	}

	slog.Info("Task completed",
		"type", "ProcessVendorFeed",
		"vendor", t.VendorName,
		"duration", t.GetDuration(),
		"total", len(records),
		"filtered", len(records)-len(kept),
		"saved", len(kept),
		"comparison", comparison.PublicID)

	return nil
}

func (t *ProcessVendorFeedTask) nextFetch() time.Time {
	return time.Now().UTC().Add(time.Duration(t.VendorConfig.Settings.RefreshInterval) * time.Second)
}

// recordFailedFetch moves the vendor's next fetch forward and keeps its
// title and last comparison.
func (t *ProcessVendorFeedTask) recordFailedFetch() error {
	vendor, err := t.vendorRepo.GetVendor(t.VendorName)
	if err != nil {
		return err
	}

	title := t.VendorName
	var lastComparisonID *int64
	if vendor != nil {
		if vendor.Title != "" {
			title = vendor.Title
		}
		lastComparisonID = vendor.LastComparisonID
	}

	return t.vendorRepo.UpdateVendorFetch(t.VendorName, title, lastComparisonID, t.nextFetch())
}

func (t *ProcessVendorFeedTask) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(t.VendorConfig.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/xml, text/xml, */*")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxFeedBytes {
		return nil, fmt.Errorf("feed exceeds %d bytes", maxFeedBytes)
	}

	return data, nil
}
