package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens the sqlite database at path (":memory:" for tests),
// applies pragmas, and runs migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent samplers and request handlers.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS pairs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  pair_name TEXT NOT NULL UNIQUE,
  base_token_symbol TEXT NOT NULL,
  quote_token_symbol TEXT NOT NULL,
  base_token TEXT NOT NULL,
  quote_token TEXT NOT NULL,
  base_token_type INTEGER NOT NULL,
  quote_token_type INTEGER NOT NULL,
  token_id INTEGER,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS orders (
  order_id TEXT PRIMARY KEY,
  pair_name TEXT NOT NULL,
  side TEXT NOT NULL,
  price TEXT NOT NULL,
  quantity TEXT NOT NULL,
  creator TEXT NOT NULL,
  signature TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_creator_status ON orders(creator, status);`,
		`
CREATE TABLE IF NOT EXISTS snapshots (
  pair_id INTEGER PRIMARY KEY REFERENCES pairs(id) ON DELETE CASCADE,
  content TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS trades (
  trade_id TEXT PRIMARY KEY,
  tx_hash TEXT NOT NULL,
  submitted_at TEXT NOT NULL,
  call_args TEXT NOT NULL,
  status TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS market_prices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  pair_id INTEGER NOT NULL REFERENCES pairs(id) ON DELETE CASCADE,
  timestamp TEXT NOT NULL,
  price TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_market_prices_pair_ts ON market_prices(pair_id, timestamp);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint error.
// modernc.org/sqlite does not export a typed error for this.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
