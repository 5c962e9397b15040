// Package convert chains texture decoding, frame encoding and video assembly
// into one operation over a VTF file on disk.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"assetwatch/internal/config"
	"assetwatch/internal/frames"
	"assetwatch/internal/logging"
	"assetwatch/internal/services"
	"assetwatch/internal/video"
	"assetwatch/internal/vtf"
)

// Result summarizes one conversion.
type Result struct {
	Header   vtf.Header
	Frames   int
	Video    video.Artifact
	WorkDir  string
	Kept     bool
	Duration time.Duration
}

// Converter turns a VTF texture into an MP4.
type Converter struct {
	workDir    string
	keepFrames bool
	fps        int
	encoder    *frames.Encoder
	assembler  *video.Assembler
	logger     *slog.Logger
}

// Option customizes a Converter.
type Option func(*Converter)

// WithAssembler overrides the video assembler.
func WithAssembler(a *video.Assembler) Option {
	return func(c *Converter) {
		if a != nil {
			c.assembler = a
		}
	}
}

// New constructs a Converter from the conversion settings.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Converter {
	c := &Converter{
		workDir:    cfg.Paths.WorkDir,
		keepFrames: cfg.Conversion.KeepFrames,
		fps:        cfg.Conversion.FPS,
		encoder:    frames.NewEncoder(cfg.Conversion.Workers, logger),
		logger:     logging.NewComponentLogger(logger, "convert"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.assembler == nil {
		c.assembler = video.NewAssembler(cfg, logger)
	}
	return c
}

// frameDir creates a fresh scratch directory for one run under the
// configured work dir, or beside the output when none is set.
func (c *Converter) frameDir(outputPath string) (string, error) {
	base := c.workDir
	if base == "" {
		base = filepath.Dir(outputPath)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", services.Wrap(services.ErrFilesystem, "convert", "create work dir", base, err)
	}
	dir, err := os.MkdirTemp(base, ".frames-*")
	if err != nil {
		return "", services.Wrap(services.ErrFilesystem, "convert", "create frame dir", base, err)
	}
	return dir, nil
}

// Convert decodes vtfPath and writes the rendered video to outputPath. The
// frame directory is created per run and removed on every path unless
// keep_frames is set and the run succeeded.
func (c *Converter) Convert(ctx context.Context, vtfPath, outputPath string) (Result, error) {
	started := time.Now()
	logger := logging.WithContext(ctx, c.logger)

	tex, err := vtf.DecodeFile(vtfPath)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("texture decoded",
		logging.String("path", vtfPath),
		logging.String("version", tex.Header.Version()),
		logging.String("format", tex.Header.Format.String()),
		logging.Int("frames", len(tex.Frames)),
		logging.Int("width", tex.Header.Width),
		logging.Int("height", tex.Header.Height),
	)

	dir, err := c.frameDir(outputPath)
	if err != nil {
		return Result{}, err
	}
	result := Result{Header: tex.Header, Frames: len(tex.Frames), WorkDir: dir}
	success := false
	defer func() {
		if success && c.keepFrames {
			return
		}
		if err := os.RemoveAll(dir); err != nil {
			logging.WarnWithContext(logger, "frame cleanup failed", "frame_cleanup_failed",
				logging.String("dir", dir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
				logging.String(logging.FieldImpact, "scratch frames left on disk"),
			)
		}
	}()

	if _, err := c.encoder.EncodeAll(ctx, tex.Frames, dir); err != nil {
		return Result{}, err
	}

	artifact, err := c.assembler.Assemble(ctx, dir, outputPath, c.fps)
	if err != nil {
		return Result{}, err
	}
	success = true

	result.Video = artifact
	result.Kept = c.keepFrames
	result.Duration = time.Since(started)
	logger.Info("texture converted",
		logging.String("source", vtfPath),
		logging.String("video", artifact.Path),
		logging.Int("frames", artifact.Frames),
		logging.Duration("elapsed", result.Duration),
		logging.String(logging.FieldEventType, "texture_converted"),
	)
	return result, nil
}

// Describe renders a short human summary of a decoded header.
func Describe(h vtf.Header) string {
	return fmt.Sprintf("VTF %s %s %dx%d, %d frame(s), %d mip(s)", h.Version(), h.Format, h.Width, h.Height, h.Frames, h.MipCount)
}
