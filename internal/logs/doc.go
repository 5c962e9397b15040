// Package logs reads the daemon's JSON log file for the `assetwatch logs`
// command and the status API.
//
// Tail returns the last N records (or everything after a byte offset) with
// bounded memory, optionally waiting for new records to be appended. A Filter
// narrows records by asset, cycle ID or minimum level; it matches on the JSON
// fields the logging package writes.
package logs
