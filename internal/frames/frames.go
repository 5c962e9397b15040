// Package frames writes decoded texture frames to disk as numbered PNG files
// that ffmpeg can consume as an image sequence.
package frames

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"assetwatch/internal/fileutil"
	"assetwatch/internal/logging"
	"assetwatch/internal/services"
	"assetwatch/internal/vtf"
)

const (
	// Prefix starts every frame file name.
	Prefix = "frame_"
	// Ext ends every frame file name.
	Ext = ".png"

	minWidth = 5
)

// Width returns the zero-padding width for a sequence of count frames: at
// least five digits, more when count-1 needs them.
func Width(count int) int {
	if count <= 1 {
		return minWidth
	}
	return max(minWidth, len(strconv.Itoa(count-1)))
}

// FileName returns the file name for frame index in a sequence padded to width.
func FileName(index, width int) string {
	return fmt.Sprintf("%s%0*d%s", Prefix, width, index, Ext)
}

// Pattern returns the printf-style input pattern ffmpeg expects for width.
func Pattern(width int) string {
	return fmt.Sprintf("%s%%0%dd%s", Prefix, width, Ext)
}

// Encoder renders frames to PNG.
type Encoder struct {
	workers int
	logger  *slog.Logger
}

// NewEncoder constructs an Encoder that runs at most workers encodes at once.
func NewEncoder(workers int, logger *slog.Logger) *Encoder {
	if workers <= 0 {
		workers = 1
	}
	return &Encoder{
		workers: workers,
		logger:  logging.NewComponentLogger(logger, "frames"),
	}
}

// Encode writes frame into dir as a lossless PNG and returns its path. The file
// appears under its final name only once fully written.
func (e *Encoder) Encode(frame vtf.Frame, dir string, width int) (string, error) {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Pixels) != frame.Width*frame.Height*4 {
		return "", services.Wrap(services.ErrCorruptFrame, "frames", "encode",
			fmt.Sprintf("frame %d has %d bytes for %dx%d", frame.Index, len(frame.Pixels), frame.Width, frame.Height), nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.Image()); err != nil {
		return "", services.Wrap(services.ErrCorruptFrame, "frames", "encode",
			fmt.Sprintf("frame %d", frame.Index), err)
	}

	target := filepath.Join(dir, FileName(frame.Index, width))
	if _, err := fileutil.WriteAtomic(target, &buf, 0o644); err != nil {
		return "", services.Wrap(services.ErrCorruptFrame, "frames", "write", target, err)
	}
	return target, nil
}

// EncodeAll writes every frame into dir. One frame failing does not stop its
// siblings; once all have finished, every index 0..N-1 must exist on disk or
// the run fails with ErrCorruptFrame. Paths are returned in index order.
func (e *Encoder) EncodeAll(ctx context.Context, frames []vtf.Frame, dir string) ([]string, error) {
	if len(frames) == 0 {
		return nil, services.Wrap(services.ErrCorruptFrame, "frames", "encode", "no frames to encode", nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrFilesystem, "frames", "mkdir", dir, err)
	}

	width := Width(len(frames))
	paths := make([]string, len(frames))
	errs := make([]error, len(frames))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, frame := range frames {
		if frame.Index != i {
			errs[i] = services.Wrap(services.ErrCorruptFrame, "frames", "encode",
				fmt.Sprintf("frame at position %d carries index %d", i, frame.Index), nil)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			paths[i], errs[i] = e.Encode(frame, dir, width)
			return nil
		})
	}
	_ = g.Wait()

	var failures []error
	for i, err := range errs {
		if err != nil {
			e.logger.Warn("frame encode failed",
				logging.Int("frame", i),
				logging.Error(err),
				logging.String(logging.FieldEventType, "frame_encode_failed"),
			)
			failures = append(failures, err)
			continue
		}
		if _, statErr := os.Stat(paths[i]); statErr != nil {
			failures = append(failures, fmt.Errorf("frame %d missing after encode: %w", i, statErr))
		}
	}
	if len(failures) > 0 {
		return nil, services.Wrap(services.ErrCorruptFrame, "frames", "encode all",
			fmt.Sprintf("%d of %d frames failed", len(failures), len(frames)), errors.Join(failures...))
	}

	e.logger.Debug("frames encoded",
		logging.Int("frames", len(frames)),
		logging.String("dir", dir),
	)
	return paths, nil
}
