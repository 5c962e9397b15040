package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assetwatch/internal/asset"
	"assetwatch/internal/config"
	"assetwatch/internal/convert"
	"assetwatch/internal/fetcher"
	"assetwatch/internal/services"
	"assetwatch/internal/slots"
	"assetwatch/internal/testsupport"
	"assetwatch/internal/video"
)

var (
	bspAsset = asset.TrackedAsset{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"}
	vtfAsset = asset.TrackedAsset{RemotePath: "/materials/view.vtf", LocalName: "view.vtf"}
	tick     = time.Date(2026, 10, 16, 12, 30, 45, 123456789, time.UTC)
)

type fakeConverter struct {
	calls int
	err   error
}

func (f *fakeConverter) Convert(_ context.Context, _, output string) (convert.Result, error) {
	f.calls++
	if f.err != nil {
		return convert.Result{}, f.err
	}
	if err := os.WriteFile(output, []byte("mp4"), 0o644); err != nil {
		return convert.Result{}, err
	}
	return convert.Result{Video: video.Artifact{Path: output, Frames: 1, FPS: 30, Size: 3}}, nil
}

type fakeRefetcher struct {
	store *slots.Store
	slots []asset.Slot
	body  string
}

func (f *fakeRefetcher) Fetch(_ context.Context, a asset.TrackedAsset, slot asset.Slot) (fetcher.Result, error) {
	f.slots = append(f.slots, slot)
	path := f.store.Path(a, slot)
	if err := os.WriteFile(path, []byte(f.body), 0o644); err != nil {
		return fetcher.Result{}, err
	}
	return fetcher.Result{Asset: a, Slot: slot, Path: path}, nil
}

func setup(t *testing.T) (*config.Config, *slots.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := slots.NewStore(cfg.Paths.StateDir)
	if err := store.Ensure(); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	return cfg, store
}

func writeSlot(t *testing.T, store *slots.Store, a asset.TrackedAsset, slot asset.Slot, body string) {
	t.Helper()
	if err := os.WriteFile(store.Path(a, slot), []byte(body), 0o644); err != nil {
		t.Fatalf("write slot: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestSnapshotName(t *testing.T) {
	if got := SnapshotName(tick); got != "2026-10-16T12:30:45Z" {
		t.Fatalf("SnapshotName = %q", got)
	}
	local := tick.In(time.FixedZone("X", 2*3600))
	if got := SnapshotName(local); got != "2026-10-16T12:30:45Z" {
		t.Fatalf("SnapshotName(local) = %q", got)
	}
}

func TestArchiveCopiesAndPromotes(t *testing.T) {
	cfg, store := setup(t)
	writeSlot(t, store, bspAsset, asset.SlotReference, "old")
	writeSlot(t, store, bspAsset, asset.SlotLatest, "new")
	conv := &fakeConverter{}

	result, err := New(cfg, store, nil, conv, nil).Archive(context.Background(), bspAsset, tick)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	want := filepath.Join(cfg.Paths.DataDir, "2026-10-16T12:30:45Z", "view.bsp")
	if result.ArchivedPath != want {
		t.Fatalf("archived path = %s, want %s", result.ArchivedPath, want)
	}
	if got := readFile(t, want); got != "new" {
		t.Fatalf("archived content = %q", got)
	}
	if result.Bytes != 3 {
		t.Fatalf("archived bytes = %d, want 3", result.Bytes)
	}
	if got := readFile(t, store.Path(bspAsset, asset.SlotReference)); got != "new" {
		t.Fatalf("reference = %q, want promoted bytes", got)
	}
	if conv.calls != 0 || result.VideoPath != "" {
		t.Fatal("maps must not be converted")
	}
}

func TestArchiveTwiceOverwrites(t *testing.T) {
	cfg, store := setup(t)
	archiver := New(cfg, store, nil, nil, nil)

	writeSlot(t, store, bspAsset, asset.SlotLatest, "first")
	if _, err := archiver.Archive(context.Background(), bspAsset, tick); err != nil {
		t.Fatalf("first Archive: %v", err)
	}
	writeSlot(t, store, bspAsset, asset.SlotLatest, "second")
	result, err := archiver.Archive(context.Background(), bspAsset, tick)
	if err != nil {
		t.Fatalf("second Archive: %v", err)
	}
	if got := readFile(t, result.ArchivedPath); got != "second" {
		t.Fatalf("archived content = %q, want second", got)
	}
}

func TestArchiveTextureConversion(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		cfg, store := setup(t)
		writeSlot(t, store, vtfAsset, asset.SlotLatest, "vtf")
		conv := &fakeConverter{}
		result, err := New(cfg, store, nil, conv, nil).Archive(context.Background(), vtfAsset, tick)
		if err != nil {
			t.Fatalf("Archive: %v", err)
		}
		if conv.calls != 1 {
			t.Fatalf("converter calls = %d", conv.calls)
		}
		if result.VideoPath != filepath.Join(result.SnapshotDir, "view.mp4") {
			t.Fatalf("video path = %s", result.VideoPath)
		}
	})

	t.Run("failure keeps archive", func(t *testing.T) {
		cfg, store := setup(t)
		writeSlot(t, store, vtfAsset, asset.SlotReference, "old")
		writeSlot(t, store, vtfAsset, asset.SlotLatest, "broken")
		conv := &fakeConverter{err: services.Wrap(services.ErrCorruptContainer, "vtf", "header", "bad", nil)}
		result, err := New(cfg, store, nil, conv, nil).Archive(context.Background(), vtfAsset, tick)
		if err != nil {
			t.Fatalf("conversion failure must not fail Archive: %v", err)
		}
		if !errors.Is(result.ConversionErr, services.ErrCorruptContainer) {
			t.Fatalf("ConversionErr = %v", result.ConversionErr)
		}
		if got := readFile(t, result.ArchivedPath); got != "broken" {
			t.Fatalf("archived content = %q", got)
		}
		if got := readFile(t, store.Path(vtfAsset, asset.SlotReference)); got != "broken" {
			t.Fatalf("reference = %q, want re-primed", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg, store := setup(t)
		cfg.Conversion.Enabled = false
		writeSlot(t, store, vtfAsset, asset.SlotLatest, "vtf")
		conv := &fakeConverter{}
		if _, err := New(cfg, store, nil, conv, nil).Archive(context.Background(), vtfAsset, tick); err != nil {
			t.Fatalf("Archive: %v", err)
		}
		if conv.calls != 0 {
			t.Fatal("converter should not run when disabled")
		}
	})
}

func TestArchiveSeparateVideosPerTexture(t *testing.T) {
	cfg, store := setup(t)
	skyAsset := asset.TrackedAsset{RemotePath: "/materials/sky.vtf", LocalName: "sky.vtf"}
	cfg.Assets = append(cfg.Assets, config.Asset{RemotePath: skyAsset.RemotePath, LocalName: skyAsset.LocalName})
	writeSlot(t, store, vtfAsset, asset.SlotLatest, "view texture")
	writeSlot(t, store, skyAsset, asset.SlotLatest, "sky texture")

	archiver := New(cfg, store, nil, &fakeConverter{}, nil)
	first, err := archiver.Archive(context.Background(), vtfAsset, tick)
	if err != nil {
		t.Fatalf("Archive view: %v", err)
	}
	second, err := archiver.Archive(context.Background(), skyAsset, tick)
	if err != nil {
		t.Fatalf("Archive sky: %v", err)
	}
	if first.SnapshotDir != second.SnapshotDir {
		t.Fatalf("same tick should share a snapshot: %s vs %s", first.SnapshotDir, second.SnapshotDir)
	}
	if first.VideoPath != filepath.Join(first.SnapshotDir, "view.mp4") {
		t.Fatalf("view video = %s", first.VideoPath)
	}
	if second.VideoPath != filepath.Join(second.SnapshotDir, "sky.mp4") {
		t.Fatalf("sky video = %s", second.VideoPath)
	}
	if _, err := os.Stat(first.VideoPath); err != nil {
		t.Fatalf("view video missing: %v", err)
	}
}

func TestArchiveMissingLatestLeavesReference(t *testing.T) {
	cfg, store := setup(t)
	writeSlot(t, store, bspAsset, asset.SlotReference, "old")

	_, err := New(cfg, store, nil, nil, nil).Archive(context.Background(), bspAsset, tick)
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
	if got := readFile(t, store.Path(bspAsset, asset.SlotReference)); got != "old" {
		t.Fatalf("reference = %q, want untouched", got)
	}
}

func TestArchiveRefetchMode(t *testing.T) {
	cfg, store := setup(t)
	cfg.Poll.Reprime = config.ReprimeRefetch
	writeSlot(t, store, bspAsset, asset.SlotReference, "old")
	writeSlot(t, store, bspAsset, asset.SlotLatest, "new")
	refetch := &fakeRefetcher{store: store, body: "newer"}

	result, err := New(cfg, store, refetch, nil, nil).Archive(context.Background(), bspAsset, tick)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if len(refetch.slots) != 1 || refetch.slots[0] != asset.SlotReference {
		t.Fatalf("refetch slots = %v", refetch.slots)
	}
	if got := readFile(t, result.ArchivedPath); got != "new" {
		t.Fatalf("archived = %q", got)
	}
	if got := readFile(t, store.Path(bspAsset, asset.SlotReference)); got != "newer" {
		t.Fatalf("reference = %q", got)
	}
}

func TestList(t *testing.T) {
	dataDir := t.TempDir()
	for _, name := range []string{"2026-10-16T12:00:00Z", "2026-10-16T12:00:10Z", "not-a-snapshot"} {
		testsupport.WriteFile(t, filepath.Join(dataDir, name, "view.bsp"), 10)
	}
	testsupport.WriteFile(t, filepath.Join(dataDir, "2026-10-16T12:00:10Z", "view.mp4"), 5)

	snaps, err := List(dataDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snaps))
	}
	if snaps[0].Name != "2026-10-16T12:00:10Z" {
		t.Fatalf("newest first, got %s", snaps[0].Name)
	}
	if snaps[0].Size() != 15 || len(snaps[0].Files) != 2 {
		t.Fatalf("unexpected newest snapshot: %+v", snaps[0])
	}

	missing, err := List(filepath.Join(dataDir, "absent"))
	if err != nil || missing != nil {
		t.Fatalf("missing data dir: %v %v", missing, err)
	}
}
