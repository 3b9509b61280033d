package orders

import (
	"database/sql"

	"github.com/HerbHall/netvoucher/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create orders table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS orders (
						id TEXT PRIMARY KEY,
						product_id TEXT NOT NULL,
						product_name TEXT NOT NULL,
						profile TEXT NOT NULL,
						time_limit TEXT NOT NULL DEFAULT '',
						data_limit TEXT NOT NULL DEFAULT '',
						amount_cents INTEGER NOT NULL DEFAULT 0,
						currency TEXT NOT NULL DEFAULT 'USD',
						customer TEXT NOT NULL DEFAULT '',
						external_ref TEXT NOT NULL DEFAULT '',
						status TEXT NOT NULL DEFAULT 'pending',
						voucher_username TEXT NOT NULL DEFAULT '',
						voucher_password TEXT NOT NULL DEFAULT '',
						voucher_code TEXT NOT NULL DEFAULT '',
						voucher_created INTEGER NOT NULL DEFAULT 0,
						error_message TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
					`CREATE INDEX IF NOT EXISTS idx_orders_voucher_created ON orders(voucher_created)`,
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
