package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ComparisonRepository stores extraction runs with their products and
// market results.
type ComparisonRepository struct {
	db *DB
}

func NewComparisonRepository(db *DB) *ComparisonRepository {
	return &ComparisonRepository{db: db}
}

// SaveComparison writes one run and all of its products in a single
// transaction. A run with no products is valid.
func (r *ComparisonRepository) SaveComparison(c NewComparison) (*Comparison, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved := &Comparison{
		PublicID:      uuid.NewString(),
		Filename:      c.Filename,
		SourceTitle:   c.SourceTitle,
		Vendor:        c.Vendor,
		ProductsCount: len(c.Products),
		CreatedAt:     time.Now().UTC(),
	}

	res, err := tx.Exec(`
		INSERT INTO comparisons (public_id, filename, source_title, vendor, products_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, saved.PublicID, saved.Filename, saved.SourceTitle, saved.Vendor, saved.ProductsCount, saved.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert comparison: %w", err)
	}
	if saved.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to read comparison id: %w", err)
	}

	for i, p := range c.Products {
		res, err := tx.Exec(`
			INSERT INTO products (comparison_id, position, sku, model, our_price, stock)
			VALUES (?, ?, ?, ?, ?, ?)
		`, saved.ID, i, p.SKU, p.Model, p.OurPrice.String(), p.Stock)
		if err != nil {
			return nil, fmt.Errorf("failed to insert product %s: %w", p.SKU, err)
		}
		productID, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read product id: %w", err)
		}

		for j, m := range p.MarketResults {
			sellers, err := json.Marshal(nonNilSellers(m.Sellers))
			if err != nil {
				return nil, fmt.Errorf("failed to encode sellers: %w", err)
			}

			var diff sql.NullString
			if m.PriceDifferencePercent.Valid {
				diff = sql.NullString{String: m.PriceDifferencePercent.Decimal.String(), Valid: true}
			}

			_, err = tx.Exec(`
				INSERT INTO market_results (product_id, position, kaspi_name, kaspi_price, price_difference_percent, sellers, kaspi_url)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, productID, j, m.SourceLabel, m.Price.String(), diff, string(sellers), m.ReferenceURL)
			if err != nil {
				return nil, fmt.Errorf("failed to insert market result for %s: %w", p.SKU, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit comparison: %w", err)
	}

	return saved, nil
}

// ListComparisons returns runs newest first, without products.
func (r *ComparisonRepository) ListComparisons(limit, offset int) ([]Comparison, error) {
	rows, err := r.db.Query(`
		SELECT id, public_id, filename, source_title, vendor, products_count, created_at
		FROM comparisons
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []Comparison
	for rows.Next() {
		var c Comparison
		if err := rows.Scan(&c.ID, &c.PublicID, &c.Filename, &c.SourceTitle, &c.Vendor, &c.ProductsCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comparison row: %w", err)
		}
		comparisons = append(comparisons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comparison rows: %w", err)
	}

	return comparisons, nil
}

// GetComparison loads a run by public id with at most productLimit products
// in extraction order. It returns nil when the run does not exist.
func (r *ComparisonRepository) GetComparison(publicID string, productLimit int) (*Comparison, error) {
	var c Comparison
	err := r.db.QueryRow(`
		SELECT id, public_id, filename, source_title, vendor, products_count, created_at
		FROM comparisons
		WHERE public_id = ?
	`, publicID).Scan(&c.ID, &c.PublicID, &c.Filename, &c.SourceTitle, &c.Vendor, &c.ProductsCount, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comparison: %w", err)
	}

	products, err := r.getProducts(c.ID, productLimit)
	if err != nil {
		return nil, err
	}
	c.Products = products

	return &c, nil
}

func (r *ComparisonRepository) GetComparisonCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM comparisons").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get comparison count: %w", err)
	}
	return count, nil
}

func (r *ComparisonRepository) getProducts(comparisonID int64, limit int) ([]Product, error) {
	rows, err := r.db.Query(`
		SELECT id, comparison_id, position, sku, model, our_price, stock
		FROM products
		WHERE comparison_id = ?
		ORDER BY position
		LIMIT ?
	`, comparisonID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	index := make(map[int64]int)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.ComparisonID, &p.Position, &p.SKU, &p.Model, &p.OurPrice, &p.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		p.MarketResults = []MarketResult{}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	rows.Close()

	if len(products) == 0 {
		return products, nil
	}

	resultRows, err := r.db.Query(`
		SELECT m.id, m.product_id, m.position, m.kaspi_name, m.kaspi_price,
		       m.price_difference_percent, m.sellers, m.kaspi_url
		FROM market_results m
		JOIN products p ON p.id = m.product_id
		WHERE p.comparison_id = ?
		ORDER BY m.product_id, m.position
	`, comparisonID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market results: %w", err)
	}
	defer resultRows.Close()

	for resultRows.Next() {
		var m MarketResult
		var sellers string
		if err := resultRows.Scan(&m.ID, &m.ProductID, &m.Position, &m.SourceLabel, &m.Price,
			&m.PriceDifferencePercent, &sellers, &m.ReferenceURL); err != nil {
			return nil, fmt.Errorf("failed to scan market result row: %w", err)
		}

		i, ok := index[m.ProductID]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(sellers), &m.Sellers); err != nil {
			return nil, fmt.Errorf("failed to decode sellers for product %d: %w", m.ProductID, err)
		}
		products[i].MarketResults = append(products[i].MarketResults, m)
	}

	if err := resultRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market result rows: %w", err)
	}

	return products, nil
}

func nonNilSellers(sellers []string) []string {
	if sellers == nil {
		return []string{}
	}
	return sellers
}
