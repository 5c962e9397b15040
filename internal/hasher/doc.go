// Package hasher computes deterministic content digests of asset files.
//
// The digest is the only signal used to decide whether a remote asset changed,
// so every file is streamed in full on every call and nothing is cached.
package hasher
