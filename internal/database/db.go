// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package database provides the SQLite-backed operation history store.
//
// One connection, WAL mode. fetcharr runs a single engine operation at a
// time, so the single-writer discipline is a connection limit rather than a
// mutex.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the sqlite handle.
type DB struct {
	handle *sql.DB
}

// New opens (creating if needed) the database at path and applies migrations.
func New(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	handle.SetMaxOpenConns(1)

	db := &DB{handle: handle}
	if err := db.migrate(context.Background()); err != nil {
		handle.Close()
		return nil, err
	}

	return db, nil
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.handle.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(entries)

	for _, entry := range entries {
		var applied int
		if err := db.handle.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM schema_migrations WHERE name = ?", entry).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s: %w", entry, err)
		}
		if applied > 0 {
			continue
		}

		script, err := migrationsFS.ReadFile(entry)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry, err)
		}
		if _, err := db.handle.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry, err)
		}
		if _, err := db.handle.ExecContext(ctx,
			"INSERT INTO schema_migrations (name) VALUES (?)", entry); err != nil {
			return fmt.Errorf("record migration %s: %w", entry, err)
		}

		log.Debug().Str("migration", entry).Msg("applied database migration")
	}

	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.handle.Close()
}
