// Package config loads, normalizes, and validates assetwatch configuration data.
//
// It supplies repository defaults (including the tracked asset set of the
// reference deployment), expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as DISCORD_BOT_TOKEN and
// PAGERDUTY_TOKEN. The Config type centralizes every knob the daemon and CLI
// need, so slot, snapshot, and scratch directories plus alert credentials are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
