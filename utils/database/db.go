package database

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS muted_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		username TEXT NOT NULL,
		reason TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		kick_timer BOOLEAN NOT NULL DEFAULT 0,
		strike_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		modified_at DATETIME NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_muted_members_active
		ON muted_members (guild_id, user_id) WHERE is_active = 1;`,
	`CREATE INDEX IF NOT EXISTS idx_muted_members_kick_timer
		ON muted_members (guild_id, user_id, kick_timer);`,
	`CREATE TABLE IF NOT EXISTS banned_members (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		case_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		username TEXT NOT NULL,
		reason TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		modified_at DATETIME NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_banned_members_active
		ON banned_members (guild_id, user_id) WHERE is_active = 1;`,
	`CREATE TABLE IF NOT EXISTS words (
		word TEXT NOT NULL PRIMARY KEY,
		escalate BOOLEAN NOT NULL DEFAULT 0
	);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS muted_members (
		id BIGSERIAL PRIMARY KEY,
		case_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		username TEXT NOT NULL,
		reason TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		kick_timer BOOLEAN NOT NULL DEFAULT FALSE,
		strike_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		modified_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_muted_members_active
		ON muted_members (guild_id, user_id) WHERE is_active;`,
	`CREATE INDEX IF NOT EXISTS idx_muted_members_kick_timer
		ON muted_members (guild_id, user_id, kick_timer);`,
	`CREATE TABLE IF NOT EXISTS banned_members (
		id BIGSERIAL PRIMARY KEY,
		case_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		guild_id TEXT NOT NULL,
		username TEXT NOT NULL,
		reason TEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		modified_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_banned_members_active
		ON banned_members (guild_id, user_id) WHERE is_active;`,
	`CREATE TABLE IF NOT EXISTS words (
		word TEXT NOT NULL PRIMARY KEY,
		escalate BOOLEAN NOT NULL DEFAULT FALSE
	);`,
}

// Init connects to the moderation database and ensures all necessary tables are created.
func Init(driver, dsn string) (*sqlx.DB, error) {
	var schema []string
	switch driver {
	case DriverSQLite:
		schema = sqliteSchema
	case DriverPostgres:
		schema = postgresSchema
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite only allows one writer; serialize through a single connection
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return db, nil
}

// isUniqueViolation reports whether err came from the active-record unique index.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
