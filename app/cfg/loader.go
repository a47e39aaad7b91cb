package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./price_comb.db" description:"SQLite database file"`
	CachePath string `long:"cache-path" env:"CACHE_PATH" default:"kaspi_price_data.json" description:"Market estimate cache file"`

	// Extraction
	MaxItems      int      `long:"max-items" env:"MAX_ITEMS" default:"50" description:"Maximum products extracted per document (0 for no limit)"`
	MaxUploadMB   int      `long:"max-upload-mb" env:"MAX_UPLOAD_MB" default:"16" description:"Maximum upload size in megabytes"`
	Storefront    string   `long:"storefront" env:"STOREFRONT" default:"AIKOS" description:"Our storefront name in market results"`
	VendorMarkers []string `long:"vendor-markers" env:"VENDOR_MARKERS" env-delim:"," default:"kaspi" description:"Tag markers of marketplace export layouts"`
	SearchURL     string   `long:"search-url" env:"SEARCH_URL" default:"https://kaspi.kz/shop/search/?text=%s" description:"Marketplace search URL template"`

	// Application configuration
	VendorsDir        string `long:"vendors-dir" env:"VENDORS_DIR" default:"./vendors" description:"Directory containing vendor feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers for vendor feeds"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Price Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Almaty)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load reads an optional .env file, then flags and environment.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if raw.MaxItems < 0 {
		return nil, fmt.Errorf("max-items must not be negative, got %d", raw.MaxItems)
	}
	if raw.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("max-upload-mb must be positive, got %d", raw.MaxUploadMB)
	}

	return &Cfg{
		DBPath:            raw.DBPath,
		CachePath:         raw.CachePath,
		MaxItems:          raw.MaxItems,
		MaxUploadBytes:    int64(raw.MaxUploadMB) << 20,
		Storefront:        raw.Storefront,
		VendorMarkers:     raw.VendorMarkers,
		SearchURL:         raw.SearchURL,
		VendorsDir:        raw.VendorsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
