// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Operation statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Operation kinds.
const (
	KindInstall    = "install"
	KindSelfUpdate = "self_update"
	KindRelocate   = "relocate"
)

// Operation is one recorded engine operation.
type Operation struct {
	ID           int64
	Kind         string
	Repo         string
	Tag          string
	Asset        string
	Destination  string
	Status       string
	ErrorKind    string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// HistoryStore records engine operations.
type HistoryStore struct {
	db *DB
}

// NewHistoryStore returns a HistoryStore backed by db.
func NewHistoryStore(db *DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Begin inserts a running operation and returns its id.
func (s *HistoryStore) Begin(ctx context.Context, kind, repo, tag, asset, destination string) (int64, error) {
	res, err := s.db.handle.ExecContext(ctx, `
		INSERT INTO operations (kind, repo, tag, asset, destination, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		kind, repo, tag, asset, destination, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("insert operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("operation id: %w", err)
	}
	return id, nil
}

// Finish marks an operation done or failed.
func (s *HistoryStore) Finish(ctx context.Context, id int64, status, errorKind, errorMessage string) error {
	_, err := s.db.handle.ExecContext(ctx, `
		UPDATE operations
		SET status = ?, error_kind = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, errorKind, errorMessage, id)
	if err != nil {
		return fmt.Errorf("finish operation %d: %w", id, err)
	}
	return nil
}

// UpdateDetails fills in release metadata learned after the operation began.
func (s *HistoryStore) UpdateDetails(ctx context.Context, id int64, tag, asset string) error {
	_, err := s.db.handle.ExecContext(ctx,
		"UPDATE operations SET tag = ?, asset = ? WHERE id = ?", tag, asset, id)
	if err != nil {
		return fmt.Errorf("update operation %d: %w", id, err)
	}
	return nil
}

// FinishPendingRelocations marks relocate rows still running as done. A
// successful relocation exits before it can write its own outcome, so the
// process that starts up from the moved directory finalizes the row instead.
func (s *HistoryStore) FinishPendingRelocations(ctx context.Context) error {
	_, err := s.db.handle.ExecContext(ctx, `
		UPDATE operations
		SET status = ?, finished_at = CURRENT_TIMESTAMP
		WHERE kind = ? AND status = ?`,
		StatusDone, KindRelocate, StatusRunning)
	if err != nil {
		return fmt.Errorf("finish pending relocations: %w", err)
	}
	return nil
}

// Recent returns the most recent operations, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]Operation, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.handle.QueryContext(ctx, `
		SELECT id, kind, repo, tag, asset, destination, status, error_kind, error_message, started_at, finished_at
		FROM operations
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var finished sql.NullTime
		if err := rows.Scan(&op.ID, &op.Kind, &op.Repo, &op.Tag, &op.Asset, &op.Destination,
			&op.Status, &op.ErrorKind, &op.ErrorMessage, &op.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			op.FinishedAt = &t
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
