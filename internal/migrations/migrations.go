package migrations

import (
	"log"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema for the trading ledger.
//
// Record IDs are opaque strings generated by the application; list ordering
// uses rowid to break date ties by insertion order. No delete paths exist
// anywhere in the application, so no cascades are declared.
func Run(db *sqlx.DB) {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS purchases (
            id TEXT PRIMARY KEY,
            supplier TEXT NOT NULL,
            date TEXT NOT NULL,
            quantity REAL NOT NULL CHECK (quantity >= 0),
            rate REAL NOT NULL CHECK (rate >= 0),
            amount REAL NOT NULL CHECK (amount >= 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS sales (
            id TEXT PRIMARY KEY,
            customer TEXT NOT NULL,
            date TEXT NOT NULL,
            quantity REAL NOT NULL CHECK (quantity >= 0),
            rate REAL NOT NULL CHECK (rate >= 0),
            amount REAL NOT NULL CHECK (amount >= 0),
            payment_received REAL NOT NULL DEFAULT 0,
            pending_amount REAL NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS payments (
            id TEXT PRIMARY KEY,
            sale_id TEXT NOT NULL,
            date TEXT NOT NULL,
            amount REAL NOT NULL CHECK (amount > 0),
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_payments_sale_id ON payments(sale_id);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
	}
}
