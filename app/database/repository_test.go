package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	return db
}

func sampleComparison() NewComparison {
	return NewComparison{
		Filename:    "feed.xml",
		SourceTitle: "Shop",
		Products: []NewProduct{
			{
				SKU:      "A1",
				Model:    "Michelin X-Ice 205/55 R16",
				OurPrice: decimal.RequireFromString("52000.50"),
				Stock:    4,
				MarketResults: []NewMarketResult{{
					SourceLabel:            "AIKOS",
					Price:                  decimal.RequireFromString("52000.50"),
					PriceDifferencePercent: decimal.NewNullDecimal(decimal.Zero),
					Sellers:                []string{"AIKOS", "Shina.kz"},
					ReferenceURL:           "https://example.com/a1",
				}},
			},
			{
				SKU:      "B2",
				Model:    "Unknown Model",
				OurPrice: decimal.Zero,
				MarketResults: []NewMarketResult{{
					SourceLabel: "Unknown Model",
					Price:       decimal.Zero,
				}},
			},
		},
	}
}

func TestSaveAndGetComparison(t *testing.T) {
	db := openTestDB(t)
	repo := NewComparisonRepository(db)

	saved, err := repo.SaveComparison(sampleComparison())
	require.NoError(t, err)
	require.NotEmpty(t, saved.PublicID)
	assert.Equal(t, 2, saved.ProductsCount)

	got, err := repo.GetComparison(saved.PublicID, 50)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "feed.xml", got.Filename)
	require.Len(t, got.Products, 2)

	first := got.Products[0]
	assert.Equal(t, "A1", first.SKU)
	assert.True(t, first.OurPrice.Equal(decimal.RequireFromString("52000.5")))
	assert.Equal(t, int64(4), first.Stock)
	require.Len(t, first.MarketResults, 1)
	assert.Equal(t, []string{"AIKOS", "Shina.kz"}, first.MarketResults[0].Sellers)
	assert.True(t, first.MarketResults[0].PriceDifferencePercent.Valid)

	second := got.Products[1]
	assert.Equal(t, "B2", second.SKU)
	require.Len(t, second.MarketResults, 1)
	assert.False(t, second.MarketResults[0].PriceDifferencePercent.Valid)
	assert.Empty(t, second.MarketResults[0].Sellers)
}

func TestGetComparisonProductLimit(t *testing.T) {
	db := openTestDB(t)
	repo := NewComparisonRepository(db)

	saved, err := repo.SaveComparison(sampleComparison())
	require.NoError(t, err)

	got, err := repo.GetComparison(saved.PublicID, 1)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "A1", got.Products[0].SKU)
	assert.Equal(t, 2, got.ProductsCount)
}

func TestGetComparisonMissing(t *testing.T) {
	repo := NewComparisonRepository(openTestDB(t))

	got, err := repo.GetComparison("does-not-exist", 50)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveEmptyComparison(t *testing.T) {
	repo := NewComparisonRepository(openTestDB(t))

	saved, err := repo.SaveComparison(NewComparison{Filename: "empty.xml"})
	require.NoError(t, err)
	assert.Equal(t, 0, saved.ProductsCount)

	got, err := repo.GetComparison(saved.PublicID, 50)
	require.NoError(t, err)
	assert.Empty(t, got.Products)
}

func TestListComparisons(t *testing.T) {
	repo := NewComparisonRepository(openTestDB(t))

	for _, name := range []string{"one.xml", "two.xml", "three.xml"} {
		_, err := repo.SaveComparison(NewComparison{Filename: name})
		require.NoError(t, err)
	}

	count, err := repo.GetComparisonCount()
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	list, err := repo.ListComparisons(2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "three.xml", list[0].Filename)
	assert.Equal(t, "two.xml", list[1].Filename)

	rest, err := repo.ListComparisons(2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "one.xml", rest[0].Filename)
}

func TestVendorRepository(t *testing.T) {
	db := openTestDB(t)
	vendors := NewVendorRepository(db)
	comparisons := NewComparisonRepository(db)

	require.NoError(t, vendors.UpsertVendor("acme", "https://example.com/feed.xml"))
	require.NoError(t, vendors.UpsertVendor("acme", "https://example.com/new.xml"))

	count, err := vendors.GetVendorCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	v, err := vendors.GetVendor("acme")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "https://example.com/new.xml", v.FeedURL)
	assert.Nil(t, v.LastFetchedAt)
	assert.Nil(t, v.LastComparisonID)

	saved, err := comparisons.SaveComparison(NewComparison{Filename: "acme.xml", Vendor: "acme"})
	require.NoError(t, err)

	next := time.Now().Add(time.Hour)
	require.NoError(t, vendors.UpdateVendorFetch("acme", "Acme Shop", &saved.ID, next))

	v, err = vendors.GetVendor("acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme Shop", v.Title)
	require.NotNil(t, v.LastFetchedAt)
	require.NotNil(t, v.NextFetchAt)
	require.NotNil(t, v.LastComparisonID)
	assert.Equal(t, saved.ID, *v.LastComparisonID)

	err = vendors.UpdateVendorFetch("missing", "", nil, next)
	assert.ErrorIs(t, err, ErrNotFound)

	missing, err := vendors.GetVendor("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := vendors.GetVendors()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
