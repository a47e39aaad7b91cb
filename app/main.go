package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/price-comb/app/api"
	"github.com/lysyi3m/price-comb/app/cfg"
	"github.com/lysyi3m/price-comb/app/database"
	"github.com/lysyi3m/price-comb/app/estimates"
	"github.com/lysyi3m/price-comb/app/feed"
	"github.com/lysyi3m/price-comb/app/market"
	"github.com/lysyi3m/price-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown.
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting Price Comb server", "version", appCfg.Version)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appCfg.VendorsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load vendor configurations", "error", err)
		os.Exit(1)
	}
	slog.Info("Vendor configurations loaded", "dir", appCfg.VendorsDir, "count", configCache.GetConfigCount())

	estimateCache := estimates.NewCache(appCfg.CachePath)
	estimator := market.NewSimulatedEstimator(estimateCache, market.Options{
		Storefront: appCfg.Storefront,
		SearchURL:  appCfg.SearchURL,
	})
	extractor := feed.NewExtractor(feed.NewDiscovery(appCfg.VendorMarkers), estimator)

	comparisonRepo := database.NewComparisonRepository(db)
	vendorRepo := database.NewVendorRepository(db)

	scheduler := tasks.NewScheduler(configCache, comparisonRepo, vendorRepo, &http.Client{}, extractor, feed.NewFilterer(), estimateCache,
		tasks.SchedulerOptions{
			UserAgent:   appCfg.UserAgent,
			Interval:    time.Duration(appCfg.SchedulerInterval) * time.Second,
			WorkerCount: appCfg.WorkerCount,
		})
	scheduler.Start()

	handler := api.NewHandler(extractor, comparisonRepo, vendorRepo, configCache, estimateCache, scheduler, api.Options{
		MaxItems:       appCfg.MaxItems,
		MaxUploadBytes: appCfg.MaxUploadBytes,
		Version:        appCfg.Version,
	})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()

	if err := estimateCache.Flush(); err != nil {
		slog.Error("Failed to save estimate cache", "path", estimateCache.Path(), "error", err)
	}

	slog.Info("Price Comb server shutdown complete")
}
