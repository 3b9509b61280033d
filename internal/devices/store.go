package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/google/uuid"
)

// Store errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoActiveDevice = errors.New("no active device configured")
)

// DeviceStore provides database operations for the devices module. Passwords
// cross its boundary in plaintext and are sealed/opened internally.
type DeviceStore struct {
	db     *sql.DB
	crypto *cryptor
}

// NewDeviceStore creates a DeviceStore backed by the given database.
func NewDeviceStore(db *sql.DB, crypto *cryptor) *DeviceStore {
	return &DeviceStore{db: db, crypto: crypto}
}

// loadOrCreateSalt returns the persisted key-derivation salt, creating one on
// first run.
func loadOrCreateSalt(ctx context.Context, db *sql.DB) ([]byte, error) {
	var salt []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM devices_meta WHERE key = 'kdf_salt'`).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load salt: %w", err)
	}

	salt, err = generateSalt()
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO devices_meta (key, value) VALUES ('kdf_salt', ?)`, salt); err != nil {
		return nil, fmt.Errorf("persist salt: %w", err)
	}
	return salt, nil
}

// Create inserts a device. The first device registered becomes active.
func (s *DeviceStore) Create(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.ConnectionStatus == "" {
		d.ConnectionStatus = routeros.StatusUnknown
	}

	sealed, err := s.crypto.seal(d.Password)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&count); err != nil {
		return fmt.Errorf("count devices: %w", err)
	}
	d.Active = count == 0

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (
			id, name, host, port, username, password_enc, version, use_tls,
			timeout_seconds, default_profile, hotspot_interface, active,
			connection_status, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Host, d.Port, d.Username, sealed, string(d.Version), boolInt(d.UseTLS),
		int(d.Timeout.Seconds()), d.DefaultProfile, d.HotspotInterface, boolInt(d.Active),
		string(d.ConnectionStatus), d.ErrorMessage, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return tx.Commit()
}

// Update rewrites a device's settings. An empty Password keeps the stored one.
func (s *DeviceStore) Update(ctx context.Context, d *Device) error {
	existing, err := s.Get(ctx, d.ID)
	if err != nil {
		return err
	}
	if d.Password == "" {
		d.Password = existing.Password
	}

	sealed, err := s.crypto.seal(d.Password)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	d.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE devices SET
			name = ?, host = ?, port = ?, username = ?, password_enc = ?,
			version = ?, use_tls = ?, timeout_seconds = ?, default_profile = ?,
			hotspot_interface = ?, updated_at = ?
		WHERE id = ?`,
		d.Name, d.Host, d.Port, d.Username, sealed,
		string(d.Version), boolInt(d.UseTLS), int(d.Timeout.Seconds()), d.DefaultProfile,
		d.HotspotInterface, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// Get returns a device by ID with its password opened.
func (s *DeviceStore) Get(ctx context.Context, id string) (*Device, error) {
	return s.scanDevice(s.db.QueryRowContext(ctx, selectDevice+` WHERE id = ?`, id))
}

// GetActive returns the single active device.
func (s *DeviceStore) GetActive(ctx context.Context) (*Device, error) {
	d, err := s.scanDevice(s.db.QueryRowContext(ctx, selectDevice+` WHERE active = 1`))
	if errors.Is(err, ErrDeviceNotFound) {
		return nil, ErrNoActiveDevice
	}
	return d, err
}

// List returns all devices ordered by creation time.
func (s *DeviceStore) List(ctx context.Context) ([]*Device, error) {
	rows, err := s.db.QueryContext(ctx, selectDevice+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var out []*Device
	for rows.Next() {
		d, err := s.scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetActive marks one device active and deactivates the rest. The swap is a
// single transaction so there is never a moment with two active devices.
func (s *DeviceStore) SetActive(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE devices SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("deactivate devices: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE devices SET active = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("activate device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDeviceNotFound
	}
	return tx.Commit()
}

// Delete removes a device by ID.
func (s *DeviceStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// UpdateConnectionStatus records the outcome of the most recent device
// operation. A connected status also stamps last_connected and clears the
// error message.
func (s *DeviceStore) UpdateConnectionStatus(ctx context.Context, id string, status routeros.ConnectionStatus, errMsg string) error {
	var err error
	if status == routeros.StatusConnected {
		_, err = s.db.ExecContext(ctx, `
			UPDATE devices SET connection_status = ?, last_connected = ?, error_message = '' WHERE id = ?`,
			string(status), time.Now().UTC(), id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE devices SET connection_status = ?, error_message = ? WHERE id = ?`,
			string(status), errMsg, id)
	}
	if err != nil {
		return fmt.Errorf("update connection status: %w", err)
	}
	return nil
}

const selectDevice = `SELECT
	id, name, host, port, username, password_enc, version, use_tls,
	timeout_seconds, default_profile, hotspot_interface, active,
	connection_status, last_connected, error_message, created_at, updated_at
FROM devices`

// rowScanner matches *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (s *DeviceStore) scanDevice(row rowScanner) (*Device, error) {
	var (
		d             Device
		sealed        []byte
		version       string
		useTLS        int
		timeoutSec    int
		active        int
		status        string
		lastConnected sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.Name, &d.Host, &d.Port, &d.Username, &sealed, &version, &useTLS,
		&timeoutSec, &d.DefaultProfile, &d.HotspotInterface, &active,
		&status, &lastConnected, &d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan device: %w", err)
	}

	d.Password, err = s.crypto.open(sealed)
	if err != nil {
		return nil, fmt.Errorf("open password for device %s: %w", d.ID, err)
	}
	d.Version = routeros.Version(version)
	d.UseTLS = useTLS == 1
	d.Timeout = time.Duration(timeoutSec) * time.Second
	d.Active = active == 1
	d.ConnectionStatus = routeros.ConnectionStatus(status)
	if lastConnected.Valid {
		t := lastConnected.Time
		d.LastConnected = &t
	}
	return &d, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
