// Package logging assembles structured slog loggers and formatting helpers used
// across assetwatch components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can
// automatically tag log lines with asset names, stages, and poll cycle IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail, plus retention pruning for the daemon log directory.
package logging
