package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/HerbHall/netvoucher/pkg/plugin"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestMigrateAppliesOnce(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	applied := 0
	migs := []plugin.Migration{
		{
			Version:     1,
			Description: "create widgets",
			Up: func(tx *sql.Tx) error {
				applied++
				_, err := tx.Exec(`CREATE TABLE widgets (id TEXT PRIMARY KEY)`)
				return err
			},
		},
	}

	if err := s.Migrate(ctx, "widgets", migs); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := s.Migrate(ctx, "widgets", migs); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if applied != 1 {
		t.Errorf("migration applied %d times, want 1", applied)
	}
	if n := countRows(t, s.DB(), "_migrations"); n != 1 {
		t.Errorf("_migrations rows = %d, want 1", n)
	}
}

func TestMigrateFailureRollsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	migs := []plugin.Migration{
		{
			Version:     1,
			Description: "bad migration",
			Up: func(tx *sql.Tx) error {
				if _, err := tx.Exec(`CREATE TABLE half_done (id TEXT)`); err != nil {
					return err
				}
				return errors.New("boom")
			},
		},
	}

	if err := s.Migrate(ctx, "broken", migs); err == nil {
		t.Fatal("migrate should have failed")
	}
	// Neither the table nor the tracking row survives.
	if _, err := s.DB().Exec("SELECT * FROM half_done"); err == nil {
		t.Error("half_done table exists after rollback")
	}
	if n := countRows(t, s.DB(), "_migrations"); n != 0 {
		t.Errorf("_migrations rows = %d, want 0", n)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.DB().Exec(`CREATE TABLE things (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	wantErr := errors.New("abort")
	err := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO things (id) VALUES ('x')`); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Tx err = %v, want %v", err, wantErr)
	}
	if n := countRows(t, s.DB(), "things"); n != 0 {
		t.Errorf("things rows = %d, want 0 after rollback", n)
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		current string
		wantErr bool
	}{
		{"same version", "0.2.0", "0.2.0", false},
		{"upgrade", "0.1.0", "0.2.0", false},
		{"downgrade", "0.3.0", "0.2.0", true},
		{"dev stored", "dev", "0.1.0", false},
		{"dev current", "0.3.0", "dev", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testStore(t)
			ctx := context.Background()

			// First call records the stored version.
			if err := s.CheckVersion(ctx, tt.stored); err != nil {
				t.Fatalf("seed version: %v", err)
			}
			err := s.CheckVersion(ctx, tt.current)
			if tt.wantErr {
				if !errors.Is(err, ErrNewerSchema) {
					t.Errorf("err = %v, want ErrNewerSchema", err)
				}
				return
			}
			if err != nil {
				t.Errorf("err = %v, want nil", err)
			}
		})
	}
}

func TestCheckVersionUpgradePersists(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.CheckVersion(ctx, "0.1.0"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.CheckVersion(ctx, "0.2.0"); err != nil {
		t.Fatalf("upgrade: %v", err)
	}

	var stored string
	if err := s.DB().QueryRow("SELECT app_version FROM _schema_meta WHERE id = 1").Scan(&stored); err != nil {
		t.Fatalf("read stored version: %v", err)
	}
	if stored != "0.2.0" {
		t.Errorf("stored = %q, want 0.2.0", stored)
	}
}
