package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"assetwatch/internal/asset"
)

// Event is one persisted change.
type Event struct {
	ID              int64
	CycleID         string
	Asset           string
	RemotePath      string
	DetectedAt      time.Time
	SnapshotDir     string
	ArchivedPath    string
	VideoPath       string
	PreviousDigest  string
	CurrentDigest   string
	Bytes           int64
	ConversionError string
}

// Filter narrows event and error listings.
type Filter struct {
	Asset string
	Since time.Time
	Limit int
}

const eventColumns = "id, cycle_id, asset, remote_path, detected_at, snapshot_dir, archived_path, video_path, previous_digest, current_digest, bytes, conversion_error"

// RecordChange stores ev and advances the asset's state in one transaction.
func (s *Store) RecordChange(ctx context.Context, ev asset.ChangeEvent) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin change tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	detected := formatTime(ev.DetectedAt)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO change_events (
            cycle_id, asset, remote_path, detected_at, snapshot_dir, archived_path,
            video_path, previous_digest, current_digest, bytes, conversion_error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.CycleID,
		ev.Asset.LocalName,
		ev.Asset.RemotePath,
		detected,
		ev.SnapshotDir,
		ev.ArchivedPath,
		nullableString(ev.VideoPath),
		ev.PreviousDigest,
		ev.CurrentDigest,
		ev.Bytes,
		nullableString(ev.ConversionError),
	)
	if err != nil {
		return 0, fmt.Errorf("insert change event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO asset_state (asset, remote_path, digest, checks, changes, last_checked_at, last_changed_at)
        VALUES (?, ?, ?, 1, 1, ?, ?)
        ON CONFLICT(asset) DO UPDATE SET
            remote_path = excluded.remote_path,
            digest = excluded.digest,
            changes = asset_state.changes + 1,
            consecutive_failures = 0,
            last_changed_at = excluded.last_changed_at`,
		ev.Asset.LocalName,
		ev.Asset.RemotePath,
		ev.CurrentDigest,
		detected,
		detected,
	); err != nil {
		return 0, fmt.Errorf("update asset state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit change: %w", err)
	}
	return id, nil
}

// Events lists recorded changes, newest first.
func (s *Store) Events(ctx context.Context, filter Filter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Asset != "" {
		clauses = append(clauses, "asset = ?")
		args = append(args, filter.Asset)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "detected_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	query := "SELECT " + eventColumns + " FROM change_events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY detected_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(scanner interface{ Scan(dest ...any) error }) (Event, error) {
	var (
		ev          Event
		detectedRaw string
		videoPath   sql.NullString
		convErr     sql.NullString
	)
	if err := scanner.Scan(
		&ev.ID,
		&ev.CycleID,
		&ev.Asset,
		&ev.RemotePath,
		&detectedRaw,
		&ev.SnapshotDir,
		&ev.ArchivedPath,
		&videoPath,
		&ev.PreviousDigest,
		&ev.CurrentDigest,
		&ev.Bytes,
		&convErr,
	); err != nil {
		return Event{}, err
	}
	if detected, err := parseTimeString(detectedRaw); err == nil {
		ev.DetectedAt = detected
	}
	ev.VideoPath = videoPath.String
	ev.ConversionError = convErr.String
	return ev, nil
}
