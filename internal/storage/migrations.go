package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Per-user categories and seeding marker",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL COLLATE NOCASE,
					description TEXT NOT NULL DEFAULT '',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					UNIQUE (user_id, name)
				)`,
				`CREATE TABLE IF NOT EXISTS user_seeds (
					user_id TEXT PRIMARY KEY,
					seeded_at DATETIME NOT NULL
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Categorization rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS categorization_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					match_type TEXT NOT NULL,
					category_id INTEGER NOT NULL REFERENCES categories(id),
					confidence REAL NOT NULL,
					use_count INTEGER NOT NULL DEFAULT 1,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					UNIQUE (user_id, pattern)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_rules_user_active ON categorization_rules(user_id, is_active)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Versioned candidate records",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS records (
					id TEXT NOT NULL,
					version INTEGER NOT NULL,
					user_id TEXT NOT NULL,
					conversation_id TEXT NOT NULL,
					amount REAL NOT NULL,
					counterparty TEXT NOT NULL DEFAULT '',
					description TEXT NOT NULL DEFAULT '',
					record_date DATETIME NOT NULL,
					category_id INTEGER NOT NULL REFERENCES categories(id),
					category_confidence REAL NOT NULL DEFAULT 0,
					category_source TEXT NOT NULL,
					source_text TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					created_at DATETIME NOT NULL,
					confirmed_at DATETIME,
					PRIMARY KEY (id, version)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_records_user_status ON records(user_id, status)`,
				`CREATE INDEX IF NOT EXISTS idx_records_category_date ON records(category_id, record_date)`,
			)
		},
	},
	{
		Version:     4,
		Description: "Monthly category budgets",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS budgets (
					user_id TEXT NOT NULL,
					category_id INTEGER NOT NULL REFERENCES categories(id),
					monthly_limit REAL NOT NULL,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (user_id, category_id)
				)`,
			)
		},
	},
	{
		Version:     5,
		Description: "Conversation checkpoints",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS conversation_checkpoints (
					conversation_id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					current_node TEXT NOT NULL,
					draft TEXT,
					correction_buffer TEXT,
					last_response TEXT,
					turn_history TEXT NOT NULL,
					record_id TEXT NOT NULL DEFAULT '',
					record_version INTEGER NOT NULL DEFAULT 0,
					last_turn_key TEXT NOT NULL DEFAULT '',
					pending_confirmation INTEGER NOT NULL DEFAULT 0,
					confirmation_deadline DATETIME,
					expires_at DATETIME NOT NULL,
					version INTEGER NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_checkpoints_expires ON conversation_checkpoints(expires_at)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies pending migrations tracked through PRAGMA user_version.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
