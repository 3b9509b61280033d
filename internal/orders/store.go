package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrOrderNotFound is returned when an order ID does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Status is the order lifecycle state. A failed order is still a completed
// purchase; only the device-side account is missing.
type Status string

const (
	StatusPending     Status = "pending"
	StatusProvisioned Status = "provisioned"
	StatusFailed      Status = "failed"
)

// Order is one voucher purchase. Product fields are snapshotted at purchase
// time so later catalog edits never rewrite history. Voucher credentials are
// stored in the clear: they are throwaway hotspot logins printed on the
// customer's receipt, not secrets.
type Order struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Profile     string `json:"profile"`
	TimeLimit   string `json:"time_limit,omitempty"`
	DataLimit   string `json:"data_limit,omitempty"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Customer    string `json:"customer,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
	Status      Status `json:"status"`

	VoucherUsername string `json:"voucher_username,omitempty"`
	VoucherPassword string `json:"voucher_password,omitempty"`
	VoucherCode     string `json:"voucher_code,omitempty"`
	VoucherCreated  bool   `json:"voucher_created"`
	ErrorMessage    string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderStore provides database operations for the orders module.
type OrderStore struct {
	db *sql.DB
}

// NewOrderStore creates an OrderStore backed by the given database.
func NewOrderStore(db *sql.DB) *OrderStore {
	return &OrderStore{db: db}
}

// Create inserts a new order in pending state.
func (s *OrderStore) Create(ctx context.Context, o *Order) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, product_id, product_name, profile, time_limit, data_limit,
			amount_cents, currency, customer, external_ref, status,
			voucher_username, voucher_password, voucher_code, voucher_created,
			error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.ProductID, o.ProductName, o.Profile, o.TimeLimit, o.DataLimit,
		o.AmountCents, o.Currency, o.Customer, o.ExternalRef, o.Status,
		o.VoucherUsername, o.VoucherPassword, o.VoucherCode, boolInt(o.VoucherCreated),
		o.ErrorMessage, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// MarkProvisioned records a successful provisioning result.
func (s *OrderStore) MarkProvisioned(ctx context.Context, id, username, password, code string) error {
	return s.markOutcome(ctx, id, StatusProvisioned, username, password, code, true, "")
}

// MarkFailed records a provisioning failure. The purchase stands; the order
// stays visible in the pending-provisioning query for retry.
func (s *OrderStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.markOutcome(ctx, id, StatusFailed, "", "", "", false, errMsg)
}

func (s *OrderStore) markOutcome(ctx context.Context, id string, status Status,
	username, password, code string, created bool, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders SET
			status = ?, voucher_username = ?, voucher_password = ?,
			voucher_code = ?, voucher_created = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		status, username, password, code, boolInt(created), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update order outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Get returns an order by ID.
func (s *OrderStore) Get(ctx context.Context, id string) (*Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, selectOrder+` WHERE id = ?`, id))
}

// List returns orders newest first, optionally filtered by status.
func (s *OrderStore) List(ctx context.Context, status Status) ([]*Order, error) {
	query := selectOrder
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return s.queryOrders(ctx, query, args...)
}

// ListPendingProvisioning returns orders whose purchase stands but whose
// device account was never created, oldest first so retries drain in order.
func (s *OrderStore) ListPendingProvisioning(ctx context.Context) ([]*Order, error) {
	return s.queryOrders(ctx,
		selectOrder+` WHERE voucher_created = 0 ORDER BY created_at`)
}

func (s *OrderStore) queryOrders(ctx context.Context, query string, args ...any) ([]*Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const selectOrder = `SELECT
	id, product_id, product_name, profile, time_limit, data_limit,
	amount_cents, currency, customer, external_ref, status,
	voucher_username, voucher_password, voucher_code, voucher_created,
	error_message, created_at, updated_at
FROM orders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o       Order
		created int
	)
	err := row.Scan(
		&o.ID, &o.ProductID, &o.ProductName, &o.Profile, &o.TimeLimit, &o.DataLimit,
		&o.AmountCents, &o.Currency, &o.Customer, &o.ExternalRef, &o.Status,
		&o.VoucherUsername, &o.VoucherPassword, &o.VoucherCode, &created,
		&o.ErrorMessage, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.VoucherCreated = created == 1
	return &o, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
