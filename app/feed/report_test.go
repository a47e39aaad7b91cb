package feed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/price-comb/app/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleComparison() database.Comparison {
	return database.Comparison{
		PublicID:      "6f1c2a9e-8f55-4b5a-9c1e-3f0c1d2b7a10",
		Filename:      "tires & wheels.xml",
		SourceTitle:   "AIKOS",
		ProductsCount: 2,
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Products: []database.Product{
			{
				SKU:      "T-1",
				Model:    "Michelin <X-Ice>",
				OurPrice: decimal.RequireFromString("52000.5"),
				Stock:    4,
				MarketResults: []database.MarketResult{{
					SourceLabel:            "Michelin <X-Ice>",
					Price:                  decimal.NewFromInt(49400),
					PriceDifferencePercent: decimal.NewNullDecimal(decimal.RequireFromString("-5")),
					Sellers:                []string{"Vianor", "AIKOS"},
					ReferenceURL:           "https://kaspi.kz/shop/search/?text=Michelin&x=1",
				}},
			},
			{
				SKU:      "T-2",
				Model:    "Pirelli",
				OurPrice: decimal.Zero,
				MarketResults: []database.MarketResult{{
					SourceLabel: "Pirelli",
					Price:       decimal.Zero,
				}},
			},
		},
	}
}

func TestReportGenerator(t *testing.T) {
	report, err := NewReportGenerator("1.2.3").Run(sampleComparison())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(report, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, report, `<comparison id="6f1c2a9e-8f55-4b5a-9c1e-3f0c1d2b7a10" generator="Price-Comb/1.2.3">`)
	assert.Contains(t, report, `<filename>tires &amp; wheels.xml</filename>`)
	assert.Contains(t, report, `<products count="2">`)
	assert.Contains(t, report, `<model>Michelin &lt;X-Ice&gt;</model>`)
	assert.Contains(t, report, `<price>52000.5</price>`)
	assert.Contains(t, report, `<difference_percent>-5.00</difference_percent>`)
	assert.Contains(t, report, `<url>https://kaspi.kz/shop/search/?text=Michelin&amp;x=1</url>`)
	assert.Contains(t, report, `<seller>Vianor</seller>`)
	assert.NotContains(t, report, `<vendor>`)

	// A null difference is left out rather than rendered as zero.
	assert.Equal(t, 1, strings.Count(report, "<difference_percent>"))

	_, err = ParseDocument([]byte(report))
	assert.NoError(t, err)
}

func TestReportCanBeExtractedAgain(t *testing.T) {
	report, err := NewReportGenerator("dev").Run(sampleComparison())
	require.NoError(t, err)

	extractor, _ := newTestExtractor(100)
	records, err := extractor.Run(context.Background(), []byte(report), 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "T-1", records[0].SKU)
	assert.Equal(t, "Michelin <X-Ice>", records[0].Model)
	assert.Equal(t, "52000.5", records[0].OurPrice)
	assert.Equal(t, "4", records[0].Stock)

	assert.Equal(t, "T-2", records[1].SKU)
	assert.Equal(t, "0", records[1].OurPrice)
}
