package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const queueSize = 300

// VendorConfigs is the part of feed.ConfigCache the scheduler reads.
type VendorConfigs interface {
	GetConfigs() map[string]*feed.Config
	GetEnabledConfigs() map[string]*feed.Config
}

type SchedulerOptions struct {
	UserAgent   string
	Interval    time.Duration
	WorkerCount int
	TaskTimeout time.Duration
}

type Scheduler struct {
	configs        VendorConfigs
	comparisonRepo database.ComparisonStore
	vendorRepo     database.VendorStore
	httpClient     *http.Client
	extractor      FeedExtractor
	filterer       *feed.Filterer
	cache          CacheFlusher
	userAgent      string
	interval       time.Duration
	workerCount    int
	taskTimeout    time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
}

func NewScheduler(configs VendorConfigs, comparisonRepo database.ComparisonStore, vendorRepo database.VendorStore,
	httpClient *http.Client, extractor FeedExtractor, filterer *feed.Filterer, cache CacheFlusher,
	opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 5 * time.Minute
	}

	return &Scheduler{
		configs:        configs,
		comparisonRepo: comparisonRepo,
		vendorRepo:     vendorRepo,
		httpClient:     httpClient,
		extractor:      extractor,
		filterer:       filterer,
		cache:          cache,
		userAgent:      opts.UserAgent,
		interval:       opts.Interval,
		workerCount:    opts.WorkerCount,
		taskTimeout:    opts.TaskTimeout,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, queueSize),
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

		s.enqueueStartupTasks()

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

// Stop cancels running tasks and waits for the workers. The queue is left
// open so pending retries cannot send on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// VendorRefreshTasks builds the tasks that sync a vendor's configuration
// and fetch its feed immediately.
func (s *Scheduler) VendorRefreshTasks(vendorConfig *feed.Config) []TaskInterface {
	return []TaskInterface{
		NewSyncVendorConfigTask(vendorConfig.Name, vendorConfig, s.vendorRepo),
		NewProcessVendorFeedTask(vendorConfig.Name, vendorConfig, s.httpClient, s.extractor, s.filterer, s.comparisonRepo, s.vendorRepo, s.userAgent),
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	vendorConfigs := s.configs.GetConfigs()
	if len(vendorConfigs) == 0 {
		slog.Debug("No vendor configurations found")
		return
	}

	slog.Debug("Processing vendor configurations", "count", len(vendorConfigs))

	for _, vendorConfig := range vendorConfigs {
		syncTask := NewSyncVendorConfigTask(vendorConfig.Name, vendorConfig, s.vendorRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncVendorConfigTask", "vendor", vendorConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	if s.cache != nil {
		if err := s.EnqueueTask(NewFlushCacheTask(s.cache)); err != nil {
			slog.Warn("Failed to enqueue FlushCacheTask", "error", err)
		}
	}

	vendorConfigs := s.configs.GetEnabledConfigs()
	if len(vendorConfigs) == 0 {
		slog.Debug("No enabled vendor configurations found")
		return
	}

	slog.Debug("Processing enabled vendor configurations for task scheduling", "count", len(vendorConfigs))

	for _, vendorConfig := range vendorConfigs {
		vendor, err := s.vendorRepo.GetVendor(vendorConfig.Name)
		if err != nil {
			slog.Warn("Failed to get vendor from database, skipping", "vendor", vendorConfig.Name, "error", err)
			continue
		}
		if vendor == nil {
			slog.Warn("Vendor not found in database, skipping", "vendor", vendorConfig.Name)
			continue
		}

		now := time.Now().UTC()
		if vendor.NextFetchAt != nil && vendor.NextFetchAt.After(now) {
			slog.Debug("Vendor not due for refresh yet", "vendor", vendorConfig.Name, "next_fetch_at", vendor.NextFetchAt)
			continue
		}

		processTask := NewProcessVendorFeedTask(vendorConfig.Name, vendorConfig, s.httpClient, s.extractor, s.filterer, s.comparisonRepo, s.vendorRepo, s.userAgent)
		if err := s.EnqueueTask(processTask); err != nil {
			slog.Warn("Failed to enqueue ProcessVendorFeedTask", "vendor", vendorConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if isPermanent(err) {
		slog.Error("Task failed permanently, not retrying", "type", string(task.GetType()), "vendor", task.GetVendorName(), "id", task.GetID(), "error", err)
		return
	}

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "vendor", task.GetVendorName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
