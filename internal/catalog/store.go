package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/google/uuid"
)

// ErrProductNotFound is returned when a product ID does not exist.
var ErrProductNotFound = errors.New("product not found")

// Product is one sellable voucher definition. Profile must name a hotspot
// user profile on the device; TimeLimit uses the device duration syntax and
// DataLimit the human size syntax validated at write time.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Profile    string    `json:"profile"`
	TimeLimit  string    `json:"time_limit,omitempty"`
	DataLimit  string    `json:"data_limit,omitempty"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the product definition without touching the device.
func (p *Product) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.Profile == "" {
		return errors.New("profile is required")
	}
	if p.PriceCents < 0 {
		return errors.New("price_cents must not be negative")
	}
	if _, err := routeros.ParseDataLimit(p.DataLimit); err != nil {
		return err
	}
	return nil
}

// ProductStore provides database operations for the catalog module.
type ProductStore struct {
	db *sql.DB
}

// NewProductStore creates a ProductStore backed by the given database.
func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

// Create inserts a product.
func (s *ProductStore) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO catalog_products (
			id, name, profile, time_limit, data_limit, price_cents, currency,
			active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Profile, p.TimeLimit, p.DataLimit, p.PriceCents, p.Currency,
		boolInt(p.Active), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update rewrites a product definition.
func (s *ProductStore) Update(ctx context.Context, p *Product) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_products SET
			name = ?, profile = ?, time_limit = ?, data_limit = ?,
			price_cents = ?, currency = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Profile, p.TimeLimit, p.DataLimit,
		p.PriceCents, p.Currency, boolInt(p.Active), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Get returns a product by ID.
func (s *ProductStore) Get(ctx context.Context, id string) (*Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx, selectProduct+` WHERE id = ?`, id))
}

// List returns products, optionally only active ones, ordered by name.
func (s *ProductStore) List(ctx context.Context, activeOnly bool) ([]*Product, error) {
	query := selectProduct
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a product by ID.
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM catalog_products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

const selectProduct = `SELECT
	id, name, profile, time_limit, data_limit, price_cents, currency,
	active, created_at, updated_at
FROM catalog_products`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var (
		p      Product
		active int
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Profile, &p.TimeLimit, &p.DataLimit, &p.PriceCents, &p.Currency,
		&active, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.Active = active == 1
	return &p, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
