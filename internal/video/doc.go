// Package video assembles a directory of numbered PNG frames into an H.264 MP4
// by running ffmpeg, then optionally confirms the result with ffprobe.
//
// Assembler.Assemble refuses to run on an empty or gapped frame sequence, so
// a video always covers every frame the texture declared. ffmpeg writes to a
// hidden temp file beside the target which is renamed into place only after
// the process exits cleanly and (when enabled) the probe agrees on the frame
// count. Every failure is tagged with services.ErrEncoding; runs that exceed
// the configured encode timeout also carry services.ErrTimeout.
package video
