// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The video assembler uses it to confirm that a rendered MP4 carries one
// H.264 stream holding the expected number of frames.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties (codec, dimensions, frame count)
//   - Format: container-level metadata (duration, size)
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Parse: decodes a captured JSON payload
package ffprobe
