package devices

import (
	"database/sql"

	"github.com/HerbHall/netvoucher/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create device tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS devices (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						host TEXT NOT NULL,
						port INTEGER NOT NULL DEFAULT 0,
						username TEXT NOT NULL,
						password_enc BLOB NOT NULL,
						version TEXT NOT NULL DEFAULT 'v6',
						use_tls INTEGER NOT NULL DEFAULT 0,
						timeout_seconds INTEGER NOT NULL DEFAULT 10,
						default_profile TEXT NOT NULL DEFAULT '',
						hotspot_interface TEXT NOT NULL DEFAULT '',
						active INTEGER NOT NULL DEFAULT 0,
						connection_status TEXT NOT NULL DEFAULT 'unknown',
						last_connected DATETIME,
						error_message TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
						updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_devices_active ON devices(active)`,

					`CREATE TABLE IF NOT EXISTS devices_meta (
						key TEXT PRIMARY KEY,
						value BLOB NOT NULL
					)`,
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
