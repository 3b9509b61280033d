package catalog

import (
	"database/sql"

	"github.com/HerbHall/netvoucher/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create catalog product table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS catalog_products (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						profile TEXT NOT NULL,
						time_limit TEXT NOT NULL DEFAULT '',
						data_limit TEXT NOT NULL DEFAULT '',
						price_cents INTEGER NOT NULL DEFAULT 0,
						currency TEXT NOT NULL DEFAULT 'USD',
						active INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_catalog_products_active ON catalog_products(active)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
