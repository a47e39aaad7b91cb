package database

import (
	"time"

	"github.com/shopspring/decimal"
)

type Comparison struct {
	ID            int64     `json:"id"`
	PublicID      string    `json:"public_id"`
	Filename      string    `json:"filename"`
	SourceTitle   string    `json:"source_title,omitempty"`
	Vendor        string    `json:"vendor,omitempty"`
	ProductsCount int       `json:"products_count"`
	CreatedAt     time.Time `json:"created_at"`
	Products      []Product `json:"products,omitempty"`
}

type Product struct {
	ID            int64           `json:"id"`
	ComparisonID  int64           `json:"comparison_id"`
	Position      int             `json:"position"`
	SKU           string          `json:"sku"`
	Model         string          `json:"model"`
	OurPrice      decimal.Decimal `json:"our_price"`
	Stock         int64           `json:"stock"`
	MarketResults []MarketResult  `json:"kaspi_results"`
}

type MarketResult struct {
	ID                     int64               `json:"id"`
	ProductID              int64               `json:"product_id"`
	Position               int                 `json:"position"`
	SourceLabel            string              `json:"kaspi_name"`
	Price                  decimal.Decimal     `json:"kaspi_price"`
	PriceDifferencePercent decimal.NullDecimal `json:"price_difference_percent"`
	Sellers                []string            `json:"sellers"`
	ReferenceURL           string              `json:"kaspi_url"`
}

type Vendor struct {
	Name             string     `json:"name"`
	FeedURL          string     `json:"feed_url"`
	Title            string     `json:"title,omitempty"`
	LastFetchedAt    *time.Time `json:"last_fetched_at,omitempty"`
	NextFetchAt      *time.Time `json:"next_fetch_at,omitempty"`
	LastComparisonID *int64     `json:"last_comparison_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewComparison describes a finished extraction run before it is persisted.
type NewComparison struct {
	Filename    string
	SourceTitle string
	Vendor      string
	Products    []NewProduct
}

type NewProduct struct {
	SKU           string
	Model         string
	OurPrice      decimal.Decimal
	Stock         int64
	MarketResults []NewMarketResult
}

type NewMarketResult struct {
	SourceLabel            string
	Price                  decimal.Decimal
	PriceDifferencePercent decimal.NullDecimal
	Sellers                []string
	ReferenceURL           string
}
