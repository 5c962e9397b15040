// Package history persists the change log in SQLite.
//
// The Store records three things: every confirmed change (change_events),
// the latest known state of each tracked asset (asset_state), and every
// per-asset cycle failure (cycle_errors). The poll loop writes to it; the
// CLI and the daemon status API read from it.
//
// The database lives at <state_dir>/history.db. Schema changes bump the
// version in schema.go; an older database must be removed to adopt the new
// schema.
package history
