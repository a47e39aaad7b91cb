package database

import (
	"database/sql"
	"fmt"
	"time"
)

// VendorRepository tracks fetch state for configured vendor feeds.
type VendorRepository struct {
	db *DB
}

func NewVendorRepository(db *DB) *VendorRepository {
	return &VendorRepository{db: db}
}

func (r *VendorRepository) UpsertVendor(name, feedURL string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(`
		INSERT INTO vendors (name, feed_url, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			feed_url = excluded.feed_url,
			updated_at = excluded.updated_at
	`, name, feedURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert vendor: %w", err)
	}
	return nil
}

// UpdateVendorFetch records a finished fetch and schedules the next one.
func (r *VendorRepository) UpdateVendorFetch(name, title string, comparisonID *int64, nextFetch time.Time) error {
	now := time.Now().UTC()
	res, err := r.db.Exec(`
		UPDATE vendors
		SET title = ?, last_fetched_at = ?, next_fetch_at = ?, last_comparison_id = ?, updated_at = ?
		WHERE name = ?
	`, title, now, nextFetch.UTC(), comparisonID, now, name)
	if err != nil {
		return fmt.Errorf("failed to update vendor fetch: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("vendor %s: %w", name, ErrNotFound)
	}
	return nil
}

func (r *VendorRepository) GetVendor(name string) (*Vendor, error) {
	row := r.db.QueryRow(`
		SELECT name, feed_url, title, last_fetched_at, next_fetch_at, last_comparison_id, created_at, updated_at
		FROM vendors
		WHERE name = ?
	`, name)

	v, err := scanVendor(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return v, nil
}

func (r *VendorRepository) GetVendors() ([]Vendor, error) {
	rows, err := r.db.Query(`
		SELECT name, feed_url, title, last_fetched_at, next_fetch_at, last_comparison_id, created_at, updated_at
		FROM vendors
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get vendors: %w", err)
	}
	defer rows.Close()

	vendors := []Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vendor row: %w", err)
		}
		vendors = append(vendors, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vendor rows: %w", err)
	}
	return vendors, nil
}

func (r *VendorRepository) GetVendorCount() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM vendors").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get vendor count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVendor(row rowScanner) (*Vendor, error) {
	var v Vendor
	var lastFetched, nextFetch sql.NullTime
	var lastComparison sql.NullInt64

	err := row.Scan(&v.Name, &v.FeedURL, &v.Title, &lastFetched, &nextFetch, &lastComparison, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if lastFetched.Valid {
		v.LastFetchedAt = &lastFetched.Time
	}
	if nextFetch.Valid {
		v.NextFetchAt = &nextFetch.Time
	}
	if lastComparison.Valid {
		v.LastComparisonID = &lastComparison.Int64
	}
	return &v, nil
}
