package feed

import (
	"fmt"
	"log/slog"
	"strings"
)

// Filterer drops products that a vendor configuration excludes.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Run(records []ProductRecord, vendorConfig *Config) []ProductRecord {
	if vendorConfig == nil || len(vendorConfig.Filters) == 0 {
		return records
	}

	kept := make([]ProductRecord, 0, len(records))
	for _, record := range records {
		if filtered, reason := f.applyFilters(record, vendorConfig.Filters); filtered {
			slog.Debug("Product filtered", "vendor", vendorConfig.Name, "sku", record.SKU, "reason", reason)
			continue
		}
		kept = append(kept, record)
	}

	return kept
}

func (f *Filterer) applyFilters(record ProductRecord, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(record, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(record ProductRecord, field string) string {
	switch field {
	case "sku":
		return record.SKU
	case "model":
		return record.Model
	default:
		return ""
	}
}
