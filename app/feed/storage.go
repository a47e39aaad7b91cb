package feed

import (
	"github.com/lysyi3m/price-comb/app/database"
)

// ToComparison converts extracted records into the storage model. Prices and
// stock are stored as numbers; unreadable text is stored as zero.
func ToComparison(filename, sourceTitle, vendor string, records []ProductRecord) database.NewComparison {
	products := make([]database.NewProduct, 0, len(records))
	for _, record := range records {
		results := make([]database.NewMarketResult, 0, len(record.MarketSnapshots))
		for _, snapshot := range record.MarketSnapshots {
			results = append(results, database.NewMarketResult{
				SourceLabel:            snapshot.SourceLabel,
				Price:                  snapshot.Price,
				PriceDifferencePercent: snapshot.PriceDifferencePercent,
				Sellers:                snapshot.Sellers,
				ReferenceURL:           snapshot.ReferenceURL,
			})
		}

		products = append(products, database.NewProduct{
			SKU:           record.SKU,
			Model:         record.Model,
			OurPrice:      ParseNumber(record.OurPrice),
			Stock:         ParseQuantity(record.Stock),
			MarketResults: results,
		})
	}

	return database.NewComparison{
		Filename:    filename,
		SourceTitle: sourceTitle,
		Vendor:      vendor,
		Products:    products,
	}
}
