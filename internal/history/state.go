package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"assetwatch/internal/asset"
)

// AssetState is the latest known condition of one tracked asset.
type AssetState struct {
	Asset               string
	RemotePath          string
	Digest              string
	Checks              int64
	Changes             int64
	ConsecutiveFailures int64
	LastCheckedAt       time.Time
	LastChangedAt       time.Time
	LastError           string
	LastErrorAt         time.Time
}

// CycleError is one failed (asset, cycle) pair.
type CycleError struct {
	ID         int64
	CycleID    string
	Asset      string
	Stage      string
	Category   string
	Message    string
	OccurredAt time.Time
}

// RecordCheck notes a successful comparison for a with the Latest digest.
func (s *Store) RecordCheck(ctx context.Context, a asset.TrackedAsset, digest string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO asset_state (asset, remote_path, digest, checks, last_checked_at)
        VALUES (?, ?, ?, 1, ?)
        ON CONFLICT(asset) DO UPDATE SET
            remote_path = excluded.remote_path,
            digest = excluded.digest,
            checks = asset_state.checks + 1,
            consecutive_failures = 0,
            last_checked_at = excluded.last_checked_at`,
		a.LocalName,
		a.RemotePath,
		nullableString(digest),
		formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("record check: %w", err)
	}
	return nil
}

// RecordError stores a cycle failure and bumps the asset's failure streak.
func (s *Store) RecordError(ctx context.Context, a asset.TrackedAsset, ce CycleError) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin error tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	occurred := formatTime(ce.OccurredAt)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cycle_errors (cycle_id, asset, stage, category, message, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		ce.CycleID, a.LocalName, ce.Stage, ce.Category, ce.Message, occurred,
	); err != nil {
		return fmt.Errorf("insert cycle error: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO asset_state (asset, remote_path, consecutive_failures, last_error, last_error_at)
        VALUES (?, ?, 1, ?, ?)
        ON CONFLICT(asset) DO UPDATE SET
            consecutive_failures = asset_state.consecutive_failures + 1,
            last_error = excluded.last_error,
            last_error_at = excluded.last_error_at`,
		a.LocalName, a.RemotePath, ce.Message, occurred,
	); err != nil {
		return fmt.Errorf("update asset state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit cycle error: %w", err)
	}
	return nil
}

// States returns every asset's state ordered by name.
func (s *Store) States(ctx context.Context) ([]AssetState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset, remote_path, digest, checks, changes, consecutive_failures,
            last_checked_at, last_changed_at, last_error, last_error_at
        FROM asset_state ORDER BY asset`)
	if err != nil {
		return nil, fmt.Errorf("query asset state: %w", err)
	}
	defer rows.Close()

	var states []AssetState
	for rows.Next() {
		var (
			st                                 AssetState
			digest, lastError                  sql.NullString
			checkedRaw, changedRaw, lastErrRaw sql.NullString
		)
		if err := rows.Scan(
			&st.Asset, &st.RemotePath, &digest, &st.Checks, &st.Changes, &st.ConsecutiveFailures,
			&checkedRaw, &changedRaw, &lastError, &lastErrRaw,
		); err != nil {
			return nil, fmt.Errorf("scan asset state: %w", err)
		}
		st.Digest = digest.String
		st.LastError = lastError.String
		st.LastCheckedAt = parseNullTime(checkedRaw)
		st.LastChangedAt = parseNullTime(changedRaw)
		st.LastErrorAt = parseNullTime(lastErrRaw)
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset state: %w", err)
	}
	return states, nil
}

// Errors lists cycle failures, newest first.
func (s *Store) Errors(ctx context.Context, filter Filter) ([]CycleError, error) {
	query := "SELECT id, cycle_id, asset, stage, category, message, occurred_at FROM cycle_errors"
	var args []any
	if filter.Asset != "" {
		query += " WHERE asset = ?"
		args = append(args, filter.Asset)
	}
	query += " ORDER BY occurred_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycle errors: %w", err)
	}
	defer rows.Close()

	var out []CycleError
	for rows.Next() {
		var (
			ce          CycleError
			occurredRaw string
		)
		if err := rows.Scan(&ce.ID, &ce.CycleID, &ce.Asset, &ce.Stage, &ce.Category, &ce.Message, &occurredRaw); err != nil {
			return nil, fmt.Errorf("scan cycle error: %w", err)
		}
		if occurred, err := parseTimeString(occurredRaw); err == nil {
			ce.OccurredAt = occurred
		}
		out = append(out, ce)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycle errors: %w", err)
	}
	return out, nil
}
