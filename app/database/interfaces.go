package database

import (
	"time"
)

type ComparisonStore interface {
	SaveComparison(c NewComparison) (*Comparison, error)
	ListComparisons(limit, offset int) ([]Comparison, error)
	GetComparison(publicID string, productLimit int) (*Comparison, error)
	GetComparisonCount() (int, error)
}

type VendorStore interface {
	GetVendor(name string) (*Vendor, error)
	GetVendors() ([]Vendor, error)
	GetVendorCount() (int, error)

	UpsertVendor(name, feedURL string) error
	UpdateVendorFetch(name, title string, comparisonID *int64, nextFetch time.Time) error
}

var (
	_ ComparisonStore = (*ComparisonRepository)(nil)
	_ VendorStore     = (*VendorRepository)(nil)
)
