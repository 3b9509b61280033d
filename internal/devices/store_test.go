package devices

import (
	"context"
	"testing"
	"time"

	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/HerbHall/netvoucher/internal/store"
)

func testDeviceStore(t *testing.T) *DeviceStore {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx, "devices", migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	salt, err := loadOrCreateSalt(ctx, db.DB())
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	crypto, err := newCryptor("test-secret", salt)
	if err != nil {
		t.Fatalf("cryptor: %v", err)
	}
	return NewDeviceStore(db.DB(), crypto)
}

func testDevice(name string) *Device {
	return &Device{
		Name:     name,
		Host:     "192.168.88.1",
		Username: "admin",
		Password: "router-pass",
		Version:  routeros.VersionV6,
		Timeout:  10 * time.Second,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := testDeviceStore(t)
	ctx := context.Background()

	d := testDevice("gw-1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == "" {
		t.Fatal("Create did not assign an ID")
	}
	if !d.Active {
		t.Error("first device should be active")
	}

	got, err := s.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Password != "router-pass" {
		t.Errorf("password round trip = %q", got.Password)
	}
	if got.Host != "192.168.88.1" || got.Version != routeros.VersionV6 {
		t.Errorf("device fields lost: %+v", got)
	}
	if got.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", got.Timeout)
	}
}

func TestPasswordIsSealedAtRest(t *testing.T) {
	s := testDeviceStore(t)
	ctx := context.Background()

	d := testDevice("gw-1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var sealed []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT password_enc FROM devices WHERE id = ?`, d.ID).Scan(&sealed); err != nil {
		t.Fatalf("read raw row: %v", err)
	}
	if string(sealed) == "router-pass" {
		t.Fatal("password stored in plaintext")
	}
	if len(sealed) <= nonceLen {
		t.Fatalf("sealed blob too short: %d bytes", len(sealed))
	}
}

func TestSingleActiveInvariant(t *testing.T) {
	s := testDeviceStore(t)
	ctx := context.Background()

	d1 := testDevice("gw-1")
	d2 := testDevice("gw-2")
	if err := s.Create(ctx, d1); err != nil {
		t.Fatalf("Create d1: %v", err)
	}
	if err := s.Create(ctx, d2); err != nil {
		t.Fatalf("Create d2: %v", err)
	}
	if d2.Active {
		t.Error("second device should not be active on create")
	}

	if err := s.SetActive(ctx, d2.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	active, err := s.GetActive(ctx)
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.ID != d2.ID {
		t.Errorf("active = %s, want %s", active.ID, d2.ID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM devices WHERE active = 1`).Scan(&count); err != nil {
		t.Fatalf("count active: %v", err)
	}
	if count != 1 {
		t.Errorf("active device count = %d, want 1", count)
	}
}

func TestGetActiveNone(t *testing.T) {
	s := testDeviceStore(t)

	_, err := s.GetActive(context.Background())
	if err != ErrNoActiveDevice {
		t.Errorf("err = %v, want ErrNoActiveDevice", err)
	}
}

func TestUpdateKeepsPasswordWhenEmpty(t *testing.T) {
	s := testDeviceStore(t)
	ctx := context.Background()

	d := testDevice("gw-1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	upd := testDevice("gw-1-renamed")
	upd.ID = d.ID
	upd.Password = ""
	if err := s.Update(ctx, upd); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "gw-1-renamed" {
		t.Errorf("name = %q", got.Name)
	}
	if got.Password != "router-pass" {
		t.Errorf("password = %q, want original kept", got.Password)
	}
}

func TestDelete(t *testing.T) {
	s := testDeviceStore(t)
	ctx := context.Background()

	d := testDevice("gw-1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, d.ID); err != ErrDeviceNotFound {
		t.Errorf("Get after delete: err = %v, want ErrDeviceNotFound", err)
	}
	if err := s.Delete(ctx, d.ID); err != ErrDeviceNotFound {
		t.Errorf("double delete: err = %v, want ErrDeviceNotFound", err)
	}
}

func TestUpdateConnectionStatus(t *testing.T) {
	s := testDeviceStore(t)
	ctx := context.Background()

	d := testDevice("gw-1")
	if err := s.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.UpdateConnectionStatus(ctx, d.ID, routeros.StatusFailed, "connection refused"); err != nil {
		t.Fatalf("UpdateConnectionStatus failed: %v", err)
	}
	got, _ := s.Get(ctx, d.ID)
	if got.ConnectionStatus != routeros.StatusFailed || got.ErrorMessage != "connection refused" {
		t.Errorf("after failure: status=%s msg=%q", got.ConnectionStatus, got.ErrorMessage)
	}
	if got.LastConnected != nil {
		t.Error("failure should not stamp last_connected")
	}

	if err := s.UpdateConnectionStatus(ctx, d.ID, routeros.StatusConnected, ""); err != nil {
		t.Fatalf("UpdateConnectionStatus connected: %v", err)
	}
	got, _ = s.Get(ctx, d.ID)
	if got.ConnectionStatus != routeros.StatusConnected {
		t.Errorf("status = %s", got.ConnectionStatus)
	}
	if got.LastConnected == nil {
		t.Error("connected should stamp last_connected")
	}
	if got.ErrorMessage != "" {
		t.Errorf("error message not cleared: %q", got.ErrorMessage)
	}
}

func TestCryptorRejectsTamperedBlob(t *testing.T) {
	salt, err := generateSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	c, err := newCryptor("secret", salt)
	if err != nil {
		t.Fatalf("cryptor: %v", err)
	}

	sealed, err := c.seal("password123")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF

	if _, err := c.open(sealed); err == nil {
		t.Fatal("tampered ciphertext decrypted without error")
	}
}

func TestCryptorWrongSecret(t *testing.T) {
	salt, _ := generateSalt()
	c1, _ := newCryptor("secret-one", salt)
	c2, _ := newCryptor("secret-two", salt)

	sealed, err := c1.seal("password123")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := c2.open(sealed); err == nil {
		t.Fatal("wrong key decrypted without error")
	}
}
