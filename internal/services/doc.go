// Package services defines shared utilities consumed by the pipeline
// components and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp asset names, stage names, and poll cycle
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that tag failures with
//     the taxonomy the poll loop uses to contain and report them (network,
//     filesystem, corrupt container, corrupt frame, encoding, unsupported
//     algorithm).
//
// Use these helpers when wiring new components so failure classification and
// observability stay uniform across the pipeline.
package services
