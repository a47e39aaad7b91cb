package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/lysyi3m/price-comb/app/market"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

// fixedEstimator reports the same market price for every product.
type fixedEstimator struct {
	price decimal.Decimal

	mu     sync.Mutex
	models []string
}

func (e *fixedEstimator) Estimate(ctx context.Context, model string, referencePrice decimal.Decimal) []market.Snapshot {
	e.mu.Lock()
	e.models = append(e.models, model)
	e.mu.Unlock()

	return []market.Snapshot{{
		SourceLabel: model,
		Price:       e.price,
		Sellers:     []string{market.DefaultStorefront},
	}}
}

func newTestExtractor(price int64) (*Extractor, *fixedEstimator) {
	estimator := &fixedEstimator{price: decimal.NewFromInt(price)}
	return NewExtractor(NewDiscovery(nil), estimator), estimator
}

func TestExtractorEndToEnd(t *testing.T) {
	estimator := market.NewSimulatedEstimator(nil, market.Options{
		Rand: rand.New(rand.NewPCG(1, 2)),
	})
	extractor := NewExtractor(nil, estimator)

	input := `<products><item><sku>A1</sku><model>Widget</model><price>1000</price><stock>5</stock></item></products>`

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "A1", record.SKU)
	assert.Equal(t, "Widget", record.Model)
	assert.Equal(t, "1000", record.OurPrice)
	assert.Equal(t, "5", record.Stock)
	require.Len(t, record.MarketSnapshots, 1)

	snapshot := record.MarketSnapshots[0]
	owners := 0
	for _, detail := range snapshot.PerSellerDetail {
		if detail.Seller == market.DefaultStorefront {
			owners++
			assert.True(t, detail.Price.Equal(decimal.NewFromInt(1000)), "owner price %s", detail.Price)
		}
	}
	assert.Equal(t, 1, owners)
	assert.True(t, snapshot.PriceDifferencePercent.Valid)
}

func TestExtractorMalformedInput(t *testing.T) {
	extractor, estimator := newTestExtractor(100)

	inputs := []string{
		`<products><item><sku>A1</sku></products>`,
		`not xml at all`,
		``,
		`<?xml version="1.0"?>`,
	}

	for _, input := range inputs {
		records, err := extractor.Run(context.Background(), []byte(input), 10)

		var malformed *MalformedInputError
		assert.True(t, errors.As(err, &malformed), "input %q: expected MalformedInputError, got %v", input, err)
		assert.Nil(t, records)
	}
	assert.Empty(t, estimator.models)
}

func TestExtractorNoItems(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	records, err := extractor.Run(context.Background(), []byte(`<products/>`), 10)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestExtractorMaxItemsKeepsPrefix(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	var b strings.Builder
	b.WriteString("<products>")
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&b, "<item><sku>S%d</sku><model>M%d</model></item>", i, i)
	}
	b.WriteString("</products>")

	tests := []struct {
		maxItems int
		want     []string
	}{
		{maxItems: 3, want: []string{"S0", "S1", "S2"}},
		{maxItems: 1, want: []string{"S0"}},
		{maxItems: 7, want: []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6"}},
		{maxItems: 100, want: []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6"}},
		{maxItems: 0, want: []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("max_%d", tt.maxItems), func(t *testing.T) {
			records, err := extractor.Run(context.Background(), []byte(b.String()), tt.maxItems)
			require.NoError(t, err)

			var skus []string
			for _, r := range records {
				skus = append(skus, r.SKU)
			}
			assert.Equal(t, tt.want, skus)
		})
	}
}

func TestExtractorPlaceholders(t *testing.T) {
	extractor, estimator := newTestExtractor(100)

	input := `<products>
  <item><price>10</price></item>
  <item><sku>   </sku><model></model></item>
  <item><sku>Z9</sku></item>
</products>`

	records, err := extractor.Run(context.Background(), []byte(input), 0)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "Item-1", records[0].SKU)
	assert.Equal(t, "Unknown Model", records[0].Model)
	assert.Equal(t, "10", records[0].OurPrice)
	assert.Equal(t, "0", records[0].Stock)

	assert.Equal(t, "Item-2", records[1].SKU)
	assert.Equal(t, "0", records[1].OurPrice)

	assert.Equal(t, "Z9", records[2].SKU)

	for _, r := range records {
		assert.NotEmpty(t, r.SKU)
		assert.NotEmpty(t, r.Model)
	}
	assert.Equal(t, []string{"Unknown Model", "Unknown Model", "Unknown Model"}, estimator.models)
}

func TestExtractorTrimsValues(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	input := "<products><item><sku>\n  A1 \n</sku><model> Widget </model><price> 1 000,50 </price></item></products>"

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "A1", records[0].SKU)
	assert.Equal(t, "Widget", records[0].Model)
	assert.Equal(t, "1 000,50", records[0].OurPrice)
}

func TestExtractorPriceDifference(t *testing.T) {
	extractor, _ := newTestExtractor(1100)

	tests := []struct {
		price string
		want  string // empty means null
	}{
		{price: "1000", want: "10"},
		{price: "1100", want: "0"},
		{price: "2000", want: "-45"},
		{price: "3", want: "36566.67"},
		{price: "999,99", want: "11"},
		{price: "0", want: ""},
		{price: "-5", want: ""},
		{price: "n/a", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			input := fmt.Sprintf(`<products><item><sku>A</sku><model>M</model><price>%s</price></item></products>`, tt.price)

			records, err := extractor.Run(context.Background(), []byte(input), 10)
			require.NoError(t, err)
			require.Len(t, records, 1)
			require.Len(t, records[0].MarketSnapshots, 1)

			diff := records[0].MarketSnapshots[0].PriceDifferencePercent
			if tt.want == "" {
				assert.False(t, diff.Valid)
				return
			}
			require.True(t, diff.Valid)
			assert.True(t, diff.Decimal.Equal(decimal.RequireFromString(tt.want)), "got %s, want %s", diff.Decimal, tt.want)
		})
	}
}

func TestExtractorNestedVendorPrice(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	input := `<catalog>
  <kaspi_item sku="K1">
    <name>Nokian Hakkapeliitta 9</name>
    <prices><price>500</price></prices>
  </kaspi_item>
</catalog>`

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "K1", records[0].SKU)
	assert.Equal(t, "Nokian Hakkapeliitta 9", records[0].Model)
	assert.Equal(t, "500", records[0].OurPrice)
}

func TestExtractorNestedPriceNeedsMarker(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	input := `<products><item><sku>P1</sku><prices><price>500</price></prices></item></products>`

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "0", records[0].OurPrice)
}

func TestExtractorVendorCatalog(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	input := `<?xml version="1.0" encoding="utf-8"?>
<kaspi_catalog date="string" xmlns="kaspiShopping">
  <company>AIKOS</company>
  <offers>
    <offer sku="T-1">
      <model>Michelin X-Ice North 4 205/55R16</model>
      <availabilities><availability available="yes" storeId="PP1"/></availabilities>
      <cityprices><cityprice cityId="750000000">52000</cityprice></cityprices>
    </offer>
    <offer sku="T-2">
      <model>Pirelli Ice Zero 195/65R15</model>
      <availabilities><availability available="no" storeId="PP1"/></availabilities>
      <price>41000</price>
    </offer>
  </offers>
</kaspi_catalog>`

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "T-1", records[0].SKU)
	assert.Equal(t, "Michelin X-Ice North 4 205/55R16", records[0].Model)
	assert.Equal(t, "52000", records[0].OurPrice)
	assert.Equal(t, "10", records[0].Stock)

	assert.Equal(t, "T-2", records[1].SKU)
	assert.Equal(t, "41000", records[1].OurPrice)
	assert.Equal(t, "0", records[1].Stock)
}

func TestExtractorExplicitStockWins(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	input := `<kaspi_catalog><offers><kaspi_offer sku="A"><stock>3</stock><availabilities><availability available="yes"/></availabilities></kaspi_offer></offers></kaspi_catalog>`

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3", records[0].Stock)
}

func TestExtractorWindows1251(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	body, err := charmap.Windows1251.NewEncoder().String(`<товары><товар><артикул>Б1</артикул><название>Шина зимняя</название><цена>25000</цена><остаток>2</остаток></товар></товары>`)
	require.NoError(t, err)
	input := `<?xml version="1.0" encoding="windows-1251"?>` + body

	records, err := extractor.Run(context.Background(), []byte(input), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "Б1", records[0].SKU)
	assert.Equal(t, "Шина зимняя", records[0].Model)
	assert.Equal(t, "25000", records[0].OurPrice)
	assert.Equal(t, "2", records[0].Stock)
}

func TestExtractorCancelledContext(t *testing.T) {
	extractor, _ := newTestExtractor(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := extractor.Run(ctx, []byte(`<products><item><sku>A</sku></item></products>`), 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, records)
}
