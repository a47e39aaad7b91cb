package feed

import (
	"github.com/lysyi3m/price-comb/app/market"
)

// Extraction types

// ProductRecord is one normalized product pulled from a vendor feed together
// with its market snapshots. SKU and Model are never empty.
type ProductRecord struct {
	SKU             string            `json:"sku"`
	Model           string            `json:"model"`
	OurPrice        string            `json:"our_price"` // feed text, trimmed
	Stock           string            `json:"stock"`
	MarketSnapshots []market.Snapshot `json:"kaspi_results"`
}

type Metadata struct {
	FeedType    string
	Title       string
	Link        string
	Description string
	Language    string
}

// Vendor configuration types

type Config struct {
	Name     string         `validate:"required"` // Derived from filename (without .yml extension)
	URL      string         `yaml:"url" validate:"required,url"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters" validate:"dive"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval" validate:"gte=0"` // seconds
	MaxItems        int  `yaml:"max_items" validate:"gte=0"`
	Timeout         int  `yaml:"timeout" validate:"gte=0"` // seconds
}

type ConfigFilter struct {
	Field    string   `yaml:"field" validate:"oneof=sku model"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
