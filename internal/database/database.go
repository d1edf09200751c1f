// Package database is the sqlite-backed store for catalog and bookings.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewDB opens the database at path and runs migrations. Transactions are
// opened with an immediate write lock (_txlock=immediate) so that the
// capacity check inside booking creation is serialized against concurrent
// creates: read-then-insert inside one transaction is authoritative.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	instance := &DB{DB: db, path: path, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			weekday_from TEXT NOT NULL,
			weekday_to TEXT NOT NULL,
			weekend_from TEXT NOT NULL,
			weekend_to TEXT NOT NULL,
			slot_size_minutes INTEGER NOT NULL,
			lead_time_minutes INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			photo TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL CHECK (price >= 0),
			category_id INTEGER NOT NULL,
			stock INTEGER,
			daily_capacity INTEGER,
			active BOOLEAN NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (category_id) REFERENCES categories(id)
		)`,

		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_number TEXT UNIQUE NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT NOT NULL,
			total_price REAL NOT NULL CHECK (total_price >= 0),
			status TEXT NOT NULL DEFAULT 'pending',
			archived BOOLEAN NOT NULL DEFAULT 0,
			archived_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per pickup; pickup_index is the position referenced by items.
		`CREATE TABLE IF NOT EXISTS booking_pickups (
			booking_id INTEGER NOT NULL,
			pickup_index INTEGER NOT NULL,
			category_id INTEGER NOT NULL,
			category_name TEXT NOT NULL,
			date TEXT NOT NULL,
			time_slot TEXT NOT NULL,
			order_notes TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (booking_id, pickup_index),
			FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS booking_items (
			booking_id INTEGER NOT NULL,
			item_index INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			photo TEXT NOT NULL DEFAULT '',
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			price REAL NOT NULL CHECK (price >= 0),
			subtotal_price REAL NOT NULL CHECK (subtotal_price >= 0),
			pickup_index INTEGER NOT NULL,
			PRIMARY KEY (booking_id, item_index),
			FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,
		`CREATE INDEX IF NOT EXISTS idx_products_active ON products(active)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_archived ON bookings(archived)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_pickups_date ON booking_pickups(date)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_items_product ON booking_items(product_id)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

// Path returns the on-disk location of the database file.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) Close() error {
	return db.DB.Close()
}
