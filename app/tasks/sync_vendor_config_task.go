package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
)

type SyncVendorConfigTask struct {
	Task
	VendorConfig *feed.Config
	vendorRepo   database.VendorStore
}

func NewSyncVendorConfigTask(vendorName string, vendorConfig *feed.Config, vendorRepo database.VendorStore) *SyncVendorConfigTask {
	return &SyncVendorConfigTask{
		Task:         NewTask(TaskTypeSyncVendorConfig, vendorName),
		VendorConfig: vendorConfig,
		vendorRepo:   vendorRepo,
	}
}

func (t *SyncVendorConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.vendorRepo.UpsertVendor(t.VendorConfig.Name, t.VendorConfig.URL); err != nil {
		return fmt.Errorf("failed to sync vendor config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncVendorConfig",
		"vendor", t.VendorName,
		"duration", t.GetDuration())

	return nil
}
