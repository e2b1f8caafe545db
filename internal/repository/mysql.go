package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS cards (
			id VARCHAR(191) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			price DOUBLE NOT NULL DEFAULT 0,
			category VARCHAR(191) NOT NULL,
			seller_id VARCHAR(191) NOT NULL,
			front_channel_id VARCHAR(64) NOT NULL DEFAULT '',
			front_message_id VARCHAR(64) NOT NULL DEFAULT '',
			front_filename VARCHAR(255) NOT NULL DEFAULT '',
			back_channel_id VARCHAR(64) NOT NULL DEFAULT '',
			back_message_id VARCHAR(64) NOT NULL DEFAULT '',
			back_filename VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL,
			INDEX idx_cards_category (category)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS sellers (
			id VARCHAR(191) PRIMARY KEY,
			discord_id VARCHAR(64) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL DEFAULT '',
			posting_channel_id VARCHAR(64) NOT NULL DEFAULT '',
			tracking_channel_id VARCHAR(64) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS claims (
			id VARCHAR(191) PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			username VARCHAR(255) NOT NULL DEFAULT '',
			card_id VARCHAR(191) NOT NULL UNIQUE,
			card_name VARCHAR(255) NOT NULL DEFAULT '',
			price DOUBLE NOT NULL DEFAULT 0,
			paid TINYINT(1) NOT NULL DEFAULT 0,
			claimed_at DATETIME(6) NOT NULL,
			INDEX idx_claims_user (user_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS category_posts (
			category VARCHAR(191) NOT NULL,
			channel_id VARCHAR(64) NOT NULL,
			message_id VARCHAR(64) NOT NULL,
			updated_at DATETIME(6) NOT NULL,
			PRIMARY KEY (category, channel_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT ''
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS settings (
			name VARCHAR(64) PRIMARY KEY,
			value TEXT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	insertIgnore: "INSERT IGNORE INTO",
	upsertPost: `INSERT INTO category_posts (category, channel_id, message_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			message_id = VALUES(message_id),
			updated_at = VALUES(updated_at)`,
	upsertSetting: `INSERT INTO settings (name, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`,
}

// NewMySQLStore connects to MySQL. dsn uses the driver format,
// e.g. "user:password@tcp(host:3306)/market". Time parsing is forced on.
func NewMySQLStore(dsn string) (*SQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	store, err := newSQLStore(db, mysqlDialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[SQLStore] MySQL initialized: %s@%s/%s", cfg.User, cfg.Addr, cfg.DBName)
	return store, nil
}
