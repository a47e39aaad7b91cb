package feed

import (
	"testing"
)

func sampleRecords() []ProductRecord {
	return []ProductRecord{
		{SKU: "TYR-1", Model: "Michelin X-Ice North 4 205/55 R16", OurPrice: "52000", Stock: "4"},
		{SKU: "TYR-2", Model: "Pirelli Ice Zero (refurbished)", OurPrice: "41000", Stock: "1"},
		{SKU: "PHN-1", Model: "Samsung Galaxy S21", OurPrice: "349990", Stock: "10"},
	}
}

func TestFilterer_NoFilters(t *testing.T) {
	filterer := NewFilterer()

	result := filterer.Run(sampleRecords(), &Config{Filters: []ConfigFilter{}})
	if len(result) != 3 {
		t.Errorf("Expected 3 records, got %d", len(result))
	}

	result = filterer.Run(sampleRecords(), nil)
	if len(result) != 3 {
		t.Errorf("Expected 3 records with nil config, got %d", len(result))
	}
}

func TestFilterer_ModelInclude(t *testing.T) {
	filterer := NewFilterer()

	vendorConfig := &Config{
		Name:    "acme",
		Filters: []ConfigFilter{{Field: "model", Includes: []string{"MICHELIN", "pirelli"}}},
	}

	result := filterer.Run(sampleRecords(), vendorConfig)
	if len(result) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result))
	}
	if result[0].SKU != "TYR-1" || result[1].SKU != "TYR-2" {
		t.Errorf("Unexpected records kept: %+v", result)
	}
}

func TestFilterer_ModelExclude(t *testing.T) {
	filterer := NewFilterer()

	vendorConfig := &Config{
		Name:    "acme",
		Filters: []ConfigFilter{{Field: "model", Excludes: []string{"refurbished"}}},
	}

	result := filterer.Run(sampleRecords(), vendorConfig)
	if len(result) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(result))
	}
	for _, record := range result {
		if record.SKU == "TYR-2" {
			t.Error("Expected refurbished record to be excluded")
		}
	}
}

func TestFilterer_ExcludeWinsOverInclude(t *testing.T) {
	filterer := NewFilterer()

	vendorConfig := &Config{
		Name: "acme",
		Filters: []ConfigFilter{{
			Field:    "model",
			Includes: []string{"pirelli"},
			Excludes: []string{"refurbished"},
		}},
	}

	result := filterer.Run(sampleRecords(), vendorConfig)
	if len(result) != 0 {
		t.Errorf("Expected no records, got %d", len(result))
	}
}

func TestFilterer_SKUPrefix(t *testing.T) {
	filterer := NewFilterer()

	vendorConfig := &Config{
		Name:    "acme",
		Filters: []ConfigFilter{{Field: "sku", Includes: []string{"tyr-"}}},
	}

	result := filterer.Run(sampleRecords(), vendorConfig)
	if len(result) != 2 {
		t.Errorf("Expected 2 tire records, got %d", len(result))
	}
}

func TestFilterer_MultipleFilters(t *testing.T) {
	filterer := NewFilterer()

	vendorConfig := &Config{
		Name: "acme",
		Filters: []ConfigFilter{
			{Field: "sku", Includes: []string{"TYR"}},
			{Field: "model", Excludes: []string{"refurbished"}},
		},
	}

	result := filterer.Run(sampleRecords(), vendorConfig)
	if len(result) != 1 || result[0].SKU != "TYR-1" {
		t.Errorf("Expected only TYR-1, got %+v", result)
	}
}

func TestFilterer_UnknownField(t *testing.T) {
	filterer := NewFilterer()

	if value := filterer.getFieldValue(sampleRecords()[0], "price"); value != "" {
		t.Errorf("Expected empty value for unknown field, got %q", value)
	}
}
