package repository

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			category TEXT NOT NULL,
			seller_id TEXT NOT NULL,
			front_channel_id TEXT NOT NULL DEFAULT '',
			front_message_id TEXT NOT NULL DEFAULT '',
			front_filename TEXT NOT NULL DEFAULT '',
			back_channel_id TEXT NOT NULL DEFAULT '',
			back_message_id TEXT NOT NULL DEFAULT '',
			back_filename TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_category ON cards(category)`,
		`CREATE TABLE IF NOT EXISTS sellers (
			id TEXT PRIMARY KEY,
			discord_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			posting_channel_id TEXT NOT NULL DEFAULT '',
			tracking_channel_id TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS claims (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			username TEXT NOT NULL DEFAULT '',
			card_id TEXT NOT NULL UNIQUE,
			card_name TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			paid INTEGER NOT NULL DEFAULT 0,
			claimed_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claims_user ON claims(user_id)`,
		`CREATE TABLE IF NOT EXISTS category_posts (
			category TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			message_id TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (category, channel_id)
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	},
	insertIgnore: "INSERT OR IGNORE INTO",
	upsertPost: `INSERT INTO category_posts (category, channel_id, message_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(category, channel_id) DO UPDATE SET
			message_id = excluded.message_id,
			updated_at = excluded.updated_at`,
	upsertSetting: `INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
}

// NewSQLiteStore opens (or creates) the SQLite database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_time_format=sqlite", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := newSQLStore(db, sqliteDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[SQLStore] SQLite initialized with database: %s", dbPath)
	return store, nil
}
