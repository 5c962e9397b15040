// Package archive persists changed assets into timestamped snapshot
// directories, rotates the Reference slot, and hands texture snapshots to
// the conversion chain.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"assetwatch/internal/asset"
	"assetwatch/internal/config"
	"assetwatch/internal/convert"
	"assetwatch/internal/fetcher"
	"assetwatch/internal/fileutil"
	"assetwatch/internal/logging"
	"assetwatch/internal/services"
	"assetwatch/internal/slots"
)

// TimestampLayout names snapshot directories (UTC, second precision).
const TimestampLayout = time.RFC3339

// SnapshotName formats ts as a snapshot directory name.
func SnapshotName(ts time.Time) string {
	return ts.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// Refetcher downloads an asset into a slot.
type Refetcher interface {
	Fetch(ctx context.Context, a asset.TrackedAsset, slot asset.Slot) (fetcher.Result, error)
}

// TextureConverter renders a texture file into a video.
type TextureConverter interface {
	Convert(ctx context.Context, vtfPath, outputPath string) (convert.Result, error)
}

// Result describes one archival.
type Result struct {
	Asset        asset.TrackedAsset
	SnapshotDir  string
	ArchivedPath string
	VideoPath    string
	Bytes        int64
	Conversion   *convert.Result
	// ConversionErr never fails the archival itself.
	ConversionErr error
}

// Archiver writes snapshots beneath the data directory.
type Archiver struct {
	dataDir   string
	videoName string
	videos    map[string]string
	reprime   string
	convert   bool
	store     *slots.Store
	refetch   Refetcher
	converter TextureConverter
	logger    *slog.Logger
}

// New constructs an Archiver. refetch is only used with the "refetch" re-prime
// mode; converter may be nil when conversion is disabled.
func New(cfg *config.Config, store *slots.Store, refetch Refetcher, converter TextureConverter, logger *slog.Logger) *Archiver {
	videos, _ := cfg.VideoNames()
	return &Archiver{
		dataDir:   cfg.Paths.DataDir,
		videoName: cfg.Conversion.VideoName,
		videos:    videos,
		reprime:   cfg.Poll.Reprime,
		convert:   cfg.Conversion.Enabled && converter != nil,
		store:     store,
		refetch:   refetch,
		converter: converter,
		logger:    logging.NewComponentLogger(logger, "archive"),
	}
}

// SnapshotDir returns the directory for ts.
func (a *Archiver) SnapshotDir(ts time.Time) string {
	return filepath.Join(a.dataDir, SnapshotName(ts))
}

// VideoName returns the file name of item's video inside a snapshot.
// Textures outside the configured set fall back to conversion.video_name.
func (a *Archiver) VideoName(item asset.TrackedAsset) string {
	if name, ok := a.videos[item.LocalName]; ok {
		return name
	}
	return a.videoName
}

// Archive copies the Latest slot of item into the snapshot for ts, re-primes
// Reference, and converts textures. Reference is only touched once the
// snapshot copy is in place and verified against Latest. Archiving the same asset twice for one ts
// overwrites the earlier copy.
func (a *Archiver) Archive(ctx context.Context, item asset.TrackedAsset, ts time.Time) (Result, error) {
	logger := logging.WithContext(ctx, a.logger)
	dir := a.SnapshotDir(ts)
	result := Result{Asset: item, SnapshotDir: dir}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, services.Wrap(services.ErrFilesystem, "archive", "mkdir", dir, err)
	}

	target := filepath.Join(dir, item.LocalName)
	copied, err := fileutil.CopyVerified(a.store.Path(item, asset.SlotLatest), target)
	if err != nil {
		return result, services.Wrap(services.ErrFilesystem, "archive", "copy", target, err)
	}
	result.ArchivedPath = target
	result.Bytes = copied.Bytes

	if err := a.reprimeReference(ctx, item); err != nil {
		return result, err
	}

	logger.Info("asset archived",
		logging.String("snapshot", dir),
		logging.Size("size", copied.Bytes),
		logging.String("sha256", copied.SHA256),
		logging.String("reprime", a.reprime),
		logging.String(logging.FieldEventType, "asset_archived"),
	)

	if item.IsTexture() && a.convert {
		output := filepath.Join(dir, a.VideoName(item))
		conv, err := a.converter.Convert(ctx, target, output)
		if err != nil {
			result.ConversionErr = err
			logging.WarnWithContext(logger, "texture conversion failed", "conversion_failed",
				logging.String("source", target),
				logging.Error(err),
				logging.ErrorCategory(err),
				logging.Alert("missing_video"),
				logging.String(logging.FieldErrorHint, "the archived texture is kept; convert it manually with `assetwatch convert`"),
				logging.String(logging.FieldImpact, "snapshot has no video"),
			)
		} else {
			result.Conversion = &conv
			result.VideoPath = conv.Video.Path
		}
	}
	return result, nil
}

func (a *Archiver) reprimeReference(ctx context.Context, item asset.TrackedAsset) error {
	if a.reprime == config.ReprimeRefetch && a.refetch != nil {
		if _, err := a.refetch.Fetch(ctx, item, asset.SlotReference); err != nil {
			return fmt.Errorf("re-prime reference: %w", err)
		}
		return nil
	}
	if err := a.store.Promote(item); err != nil {
		return fmt.Errorf("re-prime reference: %w", err)
	}
	return nil
}

// File is one entry inside a snapshot.
type File struct {
	Name string
	Size int64
}

// Snapshot is one timestamped archive directory.
type Snapshot struct {
	Name  string
	Time  time.Time
	Path  string
	Files []File
}

// Size returns the combined size of the snapshot's files.
func (s Snapshot) Size() int64 {
	var total int64
	for _, f := range s.Files {
		total += f.Size
	}
	return total
}

// List returns the snapshots under dataDir, newest first. Directories whose
// names are not snapshot timestamps are skipped.
func List(dataDir string) ([]Snapshot, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrFilesystem, "archive", "list", dataDir, err)
	}

	var out []Snapshot
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ts, err := time.Parse(TimestampLayout, entry.Name())
		if err != nil {
			continue
		}
		snap := Snapshot{Name: entry.Name(), Time: ts, Path: filepath.Join(dataDir, entry.Name())}
		files, err := os.ReadDir(snap.Path)
		if err != nil {
			return nil, services.Wrap(services.ErrFilesystem, "archive", "list", snap.Path, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			snap.Files = append(snap.Files, File{Name: f.Name(), Size: info.Size()})
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	return out, nil
}
