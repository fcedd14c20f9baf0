/*

This file owns the single SQLite database connection and its schema.
Unlike a server fronting a shared Postgres instance, this service embeds
one file and is the only writer, so the pool is pinned to a single
connection to avoid SQLITE_BUSY from concurrent writers.

*/

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// DB is the global database connection.
var DB *sql.DB

// InitDB opens the SQLite database file at path.
func InitDB(path string) error {
	var err error
	DB, err = sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	// A single writer is a deliberate constraint of the design, not a
	// temporary limitation: one open connection avoids SQLITE_BUSY
	// entirely rather than retrying around it.
	DB.SetMaxOpenConns(1)
	DB.SetMaxIdleConns(1)
	DB.SetConnMaxLifetime(0)

	if err := DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("path", path).Msg("Successfully opened the SQLite database.")
	return nil
}

// CloseDB closes the database connection.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the DDL needed to create all tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS bindings (
			voter TEXT PRIMARY KEY,
			external TEXT NOT NULL UNIQUE,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS votes (
			voter TEXT PRIMARY KEY,
			pools_json TEXT NOT NULL,
			total_weight INTEGER NOT NULL,
			block_number INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS vote_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			voter TEXT NOT NULL,
			old_pools_json TEXT,
			new_pools_json TEXT NOT NULL,
			change_time TIMESTAMP NOT NULL,
			cooldown_until TIMESTAMP NOT NULL,
			change_count INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_vote_changes_voter_time ON vote_changes(voter, change_time DESC);

		CREATE TABLE IF NOT EXISTS pool_metadata (
			address TEXT PRIMARY KEY,
			token0 TEXT NOT NULL,
			token1 TEXT NOT NULL,
			fee INTEGER NOT NULL,
			symbol0 TEXT NOT NULL,
			symbol1 TEXT NOT NULL,
			cached_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection reports whether the database connection is healthy.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
