package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/beevik/etree"
	"github.com/lysyi3m/price-comb/app/market"
	"github.com/shopspring/decimal"
)

const (
	DefaultMaxItems = 50

	unknownModel = "Unknown Model"

	// Marketplace exports only say whether an offer is available, not how many.
	availableStock   = "10"
	unavailableStock = "0"
)

// Candidate names per field, most specific first. Russian names cover exports
// from 1C and similar accounting systems.
var (
	skuFields   = []string{"sku", "артикул", "код", "id"}
	modelFields = []string{"model", "название", "name", "title", "модель"}
	priceFields = []string{"price", "цена", "cost", "стоимость"}
	stockFields = []string{"stock", "остаток", "количество", "quantity"}

	priceContainers = []string{"cityprices", "prices"}
)

type Extractor struct {
	discovery *Discovery
	estimator market.Estimator
}

func NewExtractor(discovery *Discovery, estimator market.Estimator) *Extractor {
	if discovery == nil {
		discovery = NewDiscovery(nil)
	}
	return &Extractor{
		discovery: discovery,
		estimator: estimator,
	}
}

// Run extracts up to maxItems product records from a feed document, in
// document order. maxItems <= 0 disables the limit. Only malformed input and
// context cancellation fail the call; a broken item is logged and skipped.
func (e *Extractor) Run(ctx context.Context, data []byte, maxItems int) ([]ProductRecord, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		slog.Error("XML parse error", "error", err)
		return nil, err
	}

	root := doc.Root()
	slog.Debug("XML document parsed", "root", qualifiedTag(root), "children", len(root.ChildElements()))

	items, strategy := e.discovery.Run(doc)
	total := len(items)
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}

	slog.Info("Items discovered", "strategy", strategy, "found", total, "processing", len(items), "max_items", maxItems)

	records := make([]ProductRecord, 0, len(items))
	for idx, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := e.processItem(ctx, idx, item)
		if err != nil {
			slog.Error("Error processing item", "index", idx+1, "tag", qualifiedTag(item), "error", err)
			continue
		}
		records = append(records, record)
	}

	slog.Info("XML processing completed", "products", len(records))
	return records, nil
}

func (e *Extractor) processItem(ctx context.Context, idx int, item *etree.Element) (record ProductRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing item: %v", r)
		}
	}()

	sku, ok := Locate(item, skuFields)
	if !ok {
		sku = fmt.Sprintf("Item-%d", idx+1)
	}

	model, ok := Locate(item, modelFields)
	if !ok {
		model = unknownModel
	}

	price, ok := Locate(item, priceFields)
	if !ok && e.discovery.HasMarker(item) {
		price, ok = nestedPrice(item)
	}
	if !ok {
		price = "0"
	}

	stock, ok := Locate(item, stockFields)
	if !ok && e.discovery.HasMarker(item) {
		stock, ok = availabilityStock(item)
	}
	if !ok {
		stock = "0"
	}

	record = ProductRecord{
		SKU:      strings.TrimSpace(sku),
		Model:    strings.TrimSpace(model),
		OurPrice: strings.TrimSpace(price),
		Stock:    strings.TrimSpace(stock),
	}

	slog.Debug("Extracted product data", "sku", record.SKU, "model", record.Model, "price", record.OurPrice, "stock", record.Stock)

	ourPrice, valid := parseNumber(record.OurPrice)
	if !valid {
		slog.Warn("Invalid price format", "sku", record.SKU, "price", record.OurPrice)
	}

	snapshots := e.estimator.Estimate(ctx, record.Model, ourPrice)
	for i := range snapshots {
		snapshots[i].PriceDifferencePercent = priceDifference(snapshots[i].Price, ourPrice)
	}
	record.MarketSnapshots = snapshots

	return record, nil
}

// priceDifference is null when our price is unknown or not positive.
func priceDifference(price, ourPrice decimal.Decimal) decimal.NullDecimal {
	if !ourPrice.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(market.DifferencePercent(price, ourPrice))
}

// nestedPrice reads marketplace layouts where the price sits inside a
// per-city price list: <cityprices><cityprice cityId="...">500</cityprice></cityprices>.
func nestedPrice(item *etree.Element) (string, bool) {
	for _, container := range priceContainers {
		for _, child := range item.ChildElements() {
			if !strings.Contains(strings.ToLower(qualifiedTag(child)), container) {
				continue
			}
			for _, priceEl := range child.ChildElements() {
				if !strings.Contains(strings.ToLower(qualifiedTag(priceEl)), "price") {
					continue
				}
				if text := nonBlank(priceEl.Text()); text != "" {
					return text, true
				}
			}
		}
	}
	return "", false
}

// availabilityStock maps <availabilities><availability available="yes"/>
// onto a sentinel quantity.
func availabilityStock(item *etree.Element) (string, bool) {
	for _, child := range item.ChildElements() {
		if !strings.Contains(strings.ToLower(qualifiedTag(child)), "availabilities") {
			continue
		}
		for _, availability := range child.ChildElements() {
			value, ok := attrValue(availability, "available")
			if !ok {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(value), "yes") {
				return availableStock, true
			}
			return unavailableStock, true
		}
	}
	return "", false
}
