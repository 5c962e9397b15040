// Package fetcher downloads tracked assets from the FastDL origin into their
// local slots.
//
// Each request carries its own timeout. The body is streamed into a temp file
// inside the slot directory and renamed into place only once complete, and the
// content digest is computed while streaming. Transport failures, non-2xx
// responses and timeouts are tagged services.ErrNetwork; local write failures
// services.ErrFilesystem. The fetcher never retries; the next poll interval is
// the retry.
package fetcher
