// Package asset defines the tracked-asset data model shared by the fetch,
// detection, archival, and notification layers: the asset identity, the two
// local slots kept per asset, and the change event emitted when content moves.
package asset
