package market

import (
	"context"

	"github.com/lysyi3m/price-comb/app/estimates"
	"github.com/shopspring/decimal"
)

// SellerPrice is one seller's offer inside a snapshot.
type SellerPrice struct {
	Seller      string          `json:"seller"`
	Price       decimal.Decimal `json:"price"`
	DiffPercent decimal.Decimal `json:"diff_percent"`
}

// Snapshot is a point-in-time comparative price estimate for one product.
// Sellers is ordered by ascending price; Price is the lowest of them.
type Snapshot struct {
	SourceLabel            string              `json:"kaspi_name"`
	Price                  decimal.Decimal     `json:"kaspi_price"`
	Sellers                []string            `json:"sellers"`
	PerSellerDetail        []SellerPrice       `json:"price_details,omitempty"`
	PriceDifferencePercent decimal.NullDecimal `json:"price_difference_percent"`
	ReferenceURL           string              `json:"kaspi_url"`
}

// Estimator produces market snapshots for a product. Implementations must not
// fail: internal errors degrade to a snapshot built from the reference price.
type Estimator interface {
	Estimate(ctx context.Context, model string, referencePrice decimal.Decimal) []Snapshot
}

// Store receives the latest estimate per normalized product name.
type Store interface {
	Put(key string, entry estimates.Entry)
	FlushIfDue() error
}

var _ Store = (*estimates.Cache)(nil)

// DifferencePercent returns (price-reference)/reference*100 rounded to two
// places, or zero when the reference is not positive.
func DifferencePercent(price, reference decimal.Decimal) decimal.Decimal {
	if !reference.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(reference).Div(reference).Mul(hundred).Round(2)
}

var hundred = decimal.NewFromInt(100)
