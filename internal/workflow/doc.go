// Package workflow drives the asset poll loop.
//
// The Manager primes the Reference slot of every tracked asset, then ticks at
// the configured poll interval. Each tick gets one cycle ID and one snapshot
// timestamp and launches every asset's cycle in its own goroutine. A per-asset
// token keeps cycles of the same asset strictly ordered: when the previous
// cycle is still running the new one is skipped and logged.
//
// A cycle fetches the Latest slot, compares it with Reference and, on a
// change, archives the snapshot (converting textures to video), records the
// event in the change history and fires a notification. Failures stay
// contained to the (asset, cycle) pair: they are logged, stored as cycle
// errors and surfaced through the notifier, and the next tick retries.
//
// RunCycle runs one tick synchronously for the check command and tests.
package workflow
