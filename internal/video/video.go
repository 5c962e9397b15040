package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"assetwatch/internal/config"
	"assetwatch/internal/frames"
	"assetwatch/internal/logging"
	"assetwatch/internal/media/ffprobe"
	"assetwatch/internal/services"
)

// DefaultFPS is used when Assemble is called without a frame rate.
const DefaultFPS = 30

// Artifact describes a rendered video.
type Artifact struct {
	Path   string
	Frames int
	FPS    int
	Size   int64
}

// CommandRunner executes an external program and returns an error when it
// fails to start or exits nonzero.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Assembler runs ffmpeg over frame sequences.
type Assembler struct {
	ffmpeg  string
	ffprobe string
	preset  string
	crf     int
	timeout time.Duration
	verify  bool
	run     CommandRunner
	probe   ProbeFunc
	logger  *slog.Logger
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithCommandRunner replaces the ffmpeg process runner.
func WithCommandRunner(run CommandRunner) Option {
	return func(a *Assembler) {
		if run != nil {
			a.run = run
		}
	}
}

// WithProbe replaces the ffprobe inspection used for output verification.
func WithProbe(probe ProbeFunc) Option {
	return func(a *Assembler) {
		if probe != nil {
			a.probe = probe
		}
	}
}

// NewAssembler constructs an Assembler from the conversion settings.
func NewAssembler(cfg *config.Config, logger *slog.Logger, opts ...Option) *Assembler {
	a := &Assembler{
		ffmpeg:  cfg.FFmpegBinary(),
		ffprobe: cfg.FFprobeBinary(),
		preset:  cfg.Conversion.Preset,
		crf:     cfg.Conversion.CRF,
		timeout: cfg.EncodeTimeout(),
		verify:  cfg.Conversion.VerifyOutput,
		run:     defaultCommandRunner,
		probe:   ffprobe.Inspect,
		logger:  logging.NewComponentLogger(logger, "video"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Sequence is a validated run of frame files.
type Sequence struct {
	Dir   string
	Count int
	Width int
}

// Pattern returns the ffmpeg input pattern for the sequence.
func (s Sequence) Pattern() string {
	return filepath.Join(s.Dir, frames.Pattern(s.Width))
}

// ScanFrames lists frame files in dir and requires a non-empty, contiguous
// 0..N-1 sequence sharing one padding width.
func ScanFrames(dir string) (Sequence, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Sequence{}, services.Wrap(services.ErrEncoding, "video", "scan frames", dir, err)
	}

	width := 0
	var indices []int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, frames.Prefix) || !strings.HasSuffix(name, frames.Ext) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(name, frames.Prefix), frames.Ext)
		index, err := strconv.Atoi(digits)
		if err != nil || index < 0 || strings.ContainsAny(digits, "+-") {
			continue
		}
		if width == 0 {
			width = len(digits)
		} else if len(digits) != width {
			return Sequence{}, services.Wrap(services.ErrEncoding, "video", "scan frames",
				fmt.Sprintf("mixed padding widths %d and %d in %s", width, len(digits), dir), nil)
		}
		indices = append(indices, index)
	}
	if len(indices) == 0 {
		return Sequence{}, services.Wrap(services.ErrEncoding, "video", "scan frames",
			fmt.Sprintf("no frames in %s", dir), nil)
	}

	sort.Ints(indices)
	for i, index := range indices {
		if index != i {
			return Sequence{}, services.Wrap(services.ErrEncoding, "video", "scan frames",
				fmt.Sprintf("frame sequence in %s has a gap at index %d", dir, i), nil)
		}
	}
	return Sequence{Dir: dir, Count: len(indices), Width: width}, nil
}

// Args builds the ffmpeg command line for seq writing to output.
func (a *Assembler) Args(seq Sequence, output string, fps int) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-framerate", strconv.Itoa(fps),
		"-start_number", "0",
		"-i", seq.Pattern(),
		"-c:v", "libx264",
		"-preset", a.preset,
		"-crf", strconv.Itoa(a.crf),
		"-pix_fmt", "yuv420p",
		"-vf", "pad=ceil(iw/2)*2:ceil(ih/2)*2",
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	}
}

// Assemble renders the frames in frameDir into output at fps.
func (a *Assembler) Assemble(ctx context.Context, frameDir, output string, fps int) (Artifact, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	seq, err := ScanFrames(frameDir)
	if err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return Artifact{}, services.Wrap(services.ErrFilesystem, "video", "mkdir", filepath.Dir(output), err)
	}

	tmp := filepath.Join(filepath.Dir(output), "."+filepath.Base(output)+".partial")
	_ = os.Remove(tmp)
	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmp)
		}
	}()

	runCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	started := time.Now()
	if err := a.run(runCtx, a.ffmpeg, a.Args(seq, tmp, fps)...); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Artifact{}, services.WrapTimeout(services.ErrEncoding, "video", "ffmpeg", err)
		}
		return Artifact{}, services.Wrap(services.ErrEncoding, "video", "ffmpeg", "encode failed", err)
	}

	info, err := os.Stat(tmp)
	if err != nil || info.Size() == 0 {
		return Artifact{}, services.Wrap(services.ErrEncoding, "video", "ffmpeg",
			"ffmpeg exited cleanly but produced no output", err)
	}

	if a.verify {
		if err := a.verifyOutput(runCtx, tmp, seq.Count); err != nil {
			return Artifact{}, err
		}
	}

	if err := os.Rename(tmp, output); err != nil {
		return Artifact{}, services.Wrap(services.ErrEncoding, "video", "publish", output, err)
	}
	success = true

	a.logger.Info("video assembled",
		logging.String("output", output),
		logging.Int("frames", seq.Count),
		logging.Int("fps", fps),
		logging.Size("size", info.Size()),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "video_assembled"),
	)
	return Artifact{Path: output, Frames: seq.Count, FPS: fps, Size: info.Size()}, nil
}

func (a *Assembler) verifyOutput(ctx context.Context, path string, want int) error {
	result, err := a.probe(ctx, a.ffprobe, path)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.WrapTimeout(services.ErrEncoding, "video", "ffprobe", err)
		}
		return services.Wrap(services.ErrEncoding, "video", "ffprobe", "probe failed", err)
	}
	stream, ok := result.VideoStream()
	if !ok {
		return services.Wrap(services.ErrEncoding, "video", "verify", "output has no video stream", nil)
	}
	got := stream.Frames()
	if got < 0 {
		logging.WarnWithContext(a.logger, "ffprobe reported no frame count", "video_verify_incomplete",
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "the container lacks nb_frames; output was not frame-checked"),
			logging.String(logging.FieldImpact, "video kept without frame verification"),
		)
		return nil
	}
	if got != want {
		return services.Wrap(services.ErrEncoding, "video", "verify",
			fmt.Sprintf("video has %d frames, expected %d", got, want), nil)
	}
	return nil
}

func defaultCommandRunner(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	var stderr strings.Builder
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
