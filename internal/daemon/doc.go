// Package daemon coordinates the long-running assetwatch process.
//
// It wires configuration, the change history and the workflow manager into a
// single lifecycle with flock-based locking to prevent two daemons polling
// into the same state directory. On start it prunes old logs, runs preflight
// checks and serves a small read-only HTTP API (status, assets, events, cycle
// errors, snapshots and the log tail) for the CLI and for scripts.
//
// Keep orchestration logic here: polling and archival live in workflow while
// the daemon focuses on startup, shutdown, and high level coordination.
package daemon
