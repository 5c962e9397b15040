package workflow_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"assetwatch/internal/archive"
	"assetwatch/internal/asset"
	"assetwatch/internal/config"
	"assetwatch/internal/fetcher"
	"assetwatch/internal/history"
	"assetwatch/internal/logging"
	"assetwatch/internal/notifications"
	"assetwatch/internal/services"
	"assetwatch/internal/slots"
	"assetwatch/internal/testsupport"
	"assetwatch/internal/video"
	"assetwatch/internal/workflow"
)

type fakeFFmpeg struct {
	mu       sync.Mutex
	calls    int
	frames   int
	byOutput map[string]int
	delay    time.Duration
}

func (f *fakeFFmpeg) run(_ context.Context, _ string, args ...string) error {
	output := args[len(args)-1]
	seen := 0
	for i, arg := range args {
		if arg == "-i" {
			entries, _ := os.ReadDir(filepath.Dir(args[i+1]))
			seen = len(entries)
		}
	}
	f.mu.Lock()
	f.calls++
	f.frames = seen
	if f.byOutput == nil {
		f.byOutput = make(map[string]int)
	}
	f.byOutput[filepath.Base(output)] = seen
	delay := f.delay
	f.mu.Unlock()

	time.Sleep(delay)
	return os.WriteFile(output, []byte("mp4"), 0o644)
}

func (f *fakeFFmpeg) snapshot() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.frames
}

func (f *fakeFFmpeg) framesFor(output string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byOutput[output]
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []asset.ChangeEvent
	errors  []string
}

func (r *recordingNotifier) Publish(context.Context, notifications.Event, notifications.Payload) error {
	return nil
}

func (r *recordingNotifier) NotifyChange(_ context.Context, ev asset.ChangeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ev)
	return nil
}

func (r *recordingNotifier) NotifyError(_ context.Context, item asset.TrackedAsset, stage string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, item.LocalName+"/"+stage)
	return nil
}

func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

type harness struct {
	cfg      *config.Config
	origin   *testsupport.Origin
	ffmpeg   *fakeFFmpeg
	notifier *recordingNotifier
	history  *history.Store
	manager  *workflow.Manager
	clock    time.Time
}

func newHarness(t *testing.T, assets []config.Asset, opts ...workflow.Option) *harness {
	t.Helper()
	origin := testsupport.NewOrigin(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithOrigin(origin.URL),
		testsupport.WithAssets(assets...),
		testsupport.WithConversion(true),
	)
	cfg.Conversion.VerifyOutput = false
	cfg.Poll.Interval = 1

	h := &harness{
		cfg:      cfg,
		origin:   origin,
		ffmpeg:   &fakeFFmpeg{},
		notifier: &recordingNotifier{},
		history:  testsupport.MustOpenHistory(t, cfg),
		clock:    time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
	assembler := video.NewAssembler(cfg, logging.NewNop(), video.WithCommandRunner(h.ffmpeg.run))
	all := append([]workflow.Option{
		workflow.WithNotifier(h.notifier),
		workflow.WithAssembler(assembler),
		workflow.WithClock(func() time.Time { return h.clock }),
	}, opts...)
	mgr, err := workflow.NewManager(cfg, h.history, logging.NewNop(), all...)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.manager = mgr
	t.Cleanup(mgr.Stop)
	return h
}

func (h *harness) snapshotDir() string {
	return filepath.Join(h.cfg.Paths.DataDir, archive.SnapshotName(h.clock))
}

func (h *harness) slot(t *testing.T, name string, slot asset.Slot) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(h.cfg.Paths.StateDir, string(slot), name))
	if err != nil {
		t.Fatalf("read %s slot of %s: %v", slot, name, err)
	}
	return data
}

func resultFor(t *testing.T, summary workflow.CycleSummary, name string) workflow.AssetResult {
	t.Helper()
	for _, r := range summary.Results {
		if r.Asset.LocalName == name {
			return r
		}
	}
	t.Fatalf("no result for %s in cycle %s", name, summary.ID)
	return workflow.AssetResult{}
}

func TestUnchangedAssetCreatesNoSnapshot(t *testing.T) {
	h := newHarness(t, []config.Asset{{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"}})
	payload := []byte("VBSP map payload")
	h.origin.Set("/maps/view.bsp", payload)

	first := h.manager.RunCycle(context.Background())
	if r := resultFor(t, first, "view.bsp"); r.Err != nil || !r.Primed || r.Changed {
		t.Fatalf("first cycle = %+v, want primed and unchanged", r)
	}
	h.clock = h.clock.Add(10 * time.Second)
	second := h.manager.RunCycle(context.Background())
	if r := resultFor(t, second, "view.bsp"); r.Err != nil || r.Primed || r.Changed {
		t.Fatalf("second cycle = %+v, want unchanged", r)
	}

	entries, err := os.ReadDir(h.cfg.Paths.DataDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read data dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no snapshots, found %d", len(entries))
	}
	if got := h.slot(t, "view.bsp", asset.SlotReference); !bytes.Equal(got, payload) {
		t.Fatalf("reference slot changed: %q", got)
	}
	if got := h.origin.Requests("/maps/view.bsp"); got != 3 {
		t.Fatalf("origin requests = %d, want 3 (prime + two polls)", got)
	}

	states, err := h.history.States(context.Background())
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if len(states) != 1 || states[0].Checks != 2 || states[0].Changes != 0 {
		t.Fatalf("unexpected asset state %+v", states)
	}
}

func TestChangedTextureIsArchivedAndConverted(t *testing.T) {
	h := newHarness(t, []config.Asset{{RemotePath: "/materials/view.vtf", LocalName: "view.vtf"}})
	original := testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 64, Height: 64, Frames: 1})
	updated := testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 64, Height: 64, Frames: 3})
	h.origin.Set("/materials/view.vtf", original)

	if r := resultFor(t, h.manager.RunCycle(context.Background()), "view.vtf"); r.Err != nil || r.Changed {
		t.Fatalf("priming cycle = %+v", r)
	}

	h.origin.Set("/materials/view.vtf", updated)
	summary := h.manager.RunCycle(context.Background())
	r := resultFor(t, summary, "view.vtf")
	if r.Err != nil {
		t.Fatalf("cycle error: %v", r.Err)
	}
	if !r.Changed || r.Event == nil {
		t.Fatalf("expected a change event, got %+v", r)
	}

	snap := h.snapshotDir()
	archived, err := os.ReadFile(filepath.Join(snap, "view.vtf"))
	if err != nil {
		t.Fatalf("archived texture: %v", err)
	}
	if !bytes.Equal(archived, updated) {
		t.Fatal("archived bytes differ from the origin")
	}
	videoPath := filepath.Join(snap, "view.mp4")
	if _, err := os.Stat(videoPath); err != nil {
		t.Fatalf("video artifact: %v", err)
	}
	if r.Event.VideoPath != videoPath {
		t.Fatalf("event video path = %q, want %q", r.Event.VideoPath, videoPath)
	}
	if calls, frames := h.ffmpeg.snapshot(); calls != 1 || frames != 3 {
		t.Fatalf("ffmpeg calls=%d frames=%d, want 1 and 3", calls, frames)
	}
	if got := h.slot(t, "view.vtf", asset.SlotReference); !bytes.Equal(got, updated) {
		t.Fatal("reference slot was not rotated to the new version")
	}
	if summary.Snapshot != archive.SnapshotName(h.clock) {
		t.Fatalf("snapshot name = %q", summary.Snapshot)
	}

	events, err := h.history.Events(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 1 || events[0].CycleID != summary.ID || events[0].VideoPath != videoPath {
		t.Fatalf("unexpected history %+v", events)
	}

	h.manager.Stop()
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.changes) != 1 || h.notifier.changes[0].Asset.LocalName != "view.vtf" {
		t.Fatalf("notifications = %+v", h.notifier.changes)
	}
}

func TestCorruptTextureKeepsArchiveWithoutVideo(t *testing.T) {
	h := newHarness(t, []config.Asset{{RemotePath: "/materials/view.vtf", LocalName: "view.vtf"}})
	h.origin.Set("/materials/view.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{}))
	h.manager.RunCycle(context.Background())

	corrupt := []byte("VTF\x00\x07\x00\x00\x00truncated")
	h.origin.Set("/materials/view.vtf", corrupt)
	r := resultFor(t, h.manager.RunCycle(context.Background()), "view.vtf")
	if r.Err != nil {
		t.Fatalf("conversion failure must not fail the cycle: %v", r.Err)
	}
	if !r.Changed || r.Event == nil || r.Event.ConversionError == "" {
		t.Fatalf("expected a change with a conversion error, got %+v", r)
	}

	snap := h.snapshotDir()
	archived, err := os.ReadFile(filepath.Join(snap, "view.vtf"))
	if err != nil || !bytes.Equal(archived, corrupt) {
		t.Fatalf("raw archive missing or wrong: %v", err)
	}
	if _, err := os.Stat(filepath.Join(snap, "view.mp4")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no video artifact, stat err = %v", err)
	}
	if calls, _ := h.ffmpeg.snapshot(); calls != 0 {
		t.Fatalf("ffmpeg should not run for a corrupt texture, ran %d times", calls)
	}

	cycleErrors, err := h.history.Errors(context.Background(), history.Filter{})
	if err != nil {
		t.Fatalf("Errors: %v", err)
	}
	if len(cycleErrors) != 1 || cycleErrors[0].Stage != "convert" || cycleErrors[0].Category != "corrupt_container" {
		t.Fatalf("unexpected cycle errors %+v", cycleErrors)
	}

	h.manager.Stop()
	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	if len(h.notifier.errors) != 1 || h.notifier.errors[0] != "view.vtf/convert" {
		t.Fatalf("error notifications = %v", h.notifier.errors)
	}
}

func TestTexturesChangingInOneCycleGetSeparateVideos(t *testing.T) {
	h := newHarness(t, []config.Asset{
		{RemotePath: "/materials/a.vtf", LocalName: "a.vtf"},
		{RemotePath: "/materials/b.vtf", LocalName: "b.vtf"},
	})
	h.origin.Set("/materials/a.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 8, Height: 8, Frames: 1}))
	h.origin.Set("/materials/b.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 8, Height: 8, Frames: 1}))
	h.manager.RunCycle(context.Background())

	h.ffmpeg.delay = 100 * time.Millisecond
	h.origin.Set("/materials/a.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 8, Height: 8, Frames: 24}))
	h.origin.Set("/materials/b.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 8, Height: 8, Frames: 7}))
	summary := h.manager.RunCycle(context.Background())

	snap := h.snapshotDir()
	want := map[string]struct {
		video  string
		frames int
	}{
		"a.vtf": {"a.mp4", 24},
		"b.vtf": {"b.mp4", 7},
	}
	for name, w := range want {
		r := resultFor(t, summary, name)
		if r.Err != nil || !r.Changed || r.Event == nil {
			t.Fatalf("%s: result = %+v", name, r)
		}
		if r.Event.ConversionError != "" {
			t.Fatalf("%s: conversion failed: %s", name, r.Event.ConversionError)
		}
		if r.Event.VideoPath != filepath.Join(snap, w.video) {
			t.Fatalf("%s: video path = %q", name, r.Event.VideoPath)
		}
		if got := h.ffmpeg.framesFor(w.video); got != w.frames {
			t.Fatalf("%s: ffmpeg saw %d frames, want %d", name, got, w.frames)
		}
	}
	leftovers, _ := filepath.Glob(filepath.Join(snap, ".frames-*"))
	if len(leftovers) != 0 {
		t.Fatalf("frame dirs left in snapshot: %v", leftovers)
	}
}

func TestConversionKeepsExistingFramesDir(t *testing.T) {
	h := newHarness(t, []config.Asset{{RemotePath: "/materials/view.vtf", LocalName: "view.vtf"}})
	h.origin.Set("/materials/view.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 8, Height: 8, Frames: 1}))
	h.manager.RunCycle(context.Background())

	precious := filepath.Join(h.snapshotDir(), "frames", "precious.txt")
	if err := os.MkdirAll(filepath.Dir(precious), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(precious, []byte("user data"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	h.origin.Set("/materials/view.vtf", testsupport.BuildVTF(t, testsupport.VTFOptions{Width: 8, Height: 8, Frames: 4}))
	r := resultFor(t, h.manager.RunCycle(context.Background()), "view.vtf")
	if r.Err != nil || r.Event == nil || r.Event.ConversionError != "" {
		t.Fatalf("cycle = %+v", r)
	}
	if got := h.ffmpeg.framesFor("view.mp4"); got != 4 {
		t.Fatalf("ffmpeg saw %d frames, want 4", got)
	}
	data, err := os.ReadFile(precious)
	if err != nil || string(data) != "user data" {
		t.Fatalf("existing frames dir damaged: %q, %v", data, err)
	}
}

func TestFetchFailureIsContainedToAsset(t *testing.T) {
	h := newHarness(t, []config.Asset{
		{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"},
		{RemotePath: "/maps/ask.bsp", LocalName: "ask.bsp"},
	})
	h.origin.Set("/maps/view.bsp", []byte("v1"))
	h.origin.Set("/maps/ask.bsp", []byte("a1"))
	h.manager.RunCycle(context.Background())

	h.origin.Fail("/maps/view.bsp", http.StatusBadGateway)
	h.origin.Set("/maps/ask.bsp", []byte("a2"))
	summary := h.manager.RunCycle(context.Background())

	failed := resultFor(t, summary, "view.bsp")
	if !errors.Is(failed.Err, services.ErrNetwork) || failed.Stage != "fetch" {
		t.Fatalf("view.bsp result = %+v, want network failure at fetch", failed)
	}
	if ok := resultFor(t, summary, "ask.bsp"); ok.Err != nil || !ok.Changed {
		t.Fatalf("ask.bsp result = %+v, want change", ok)
	}
	if got := h.slot(t, "view.bsp", asset.SlotReference); string(got) != "v1" {
		t.Fatalf("failed asset reference changed: %q", got)
	}

	status := h.manager.Status()
	for _, st := range status.Assets {
		if st.Asset.LocalName == "view.bsp" && st.LastError == "" {
			t.Fatal("status should carry the fetch error")
		}
		if st.Asset.LocalName == "ask.bsp" && st.LastChange == nil {
			t.Fatal("status should carry the last change")
		}
	}

	h.origin.Recover("/maps/view.bsp")
	if r := resultFor(t, h.manager.RunCycle(context.Background()), "view.bsp"); r.Err != nil {
		t.Fatalf("recovery cycle failed: %v", r.Err)
	}
	states, err := h.history.States(context.Background())
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	for _, st := range states {
		if st.Asset == "view.bsp" && st.ConsecutiveFailures != 0 {
			t.Fatalf("failure streak not reset: %+v", st)
		}
	}
}

func TestUnprimedAssetIsPrimedBeforeComparison(t *testing.T) {
	h := newHarness(t, []config.Asset{{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"}})
	h.origin.Fail("/maps/view.bsp", http.StatusServiceUnavailable)
	h.manager.Prime(context.Background())
	if _, err := os.Stat(filepath.Join(h.cfg.Paths.StateDir, "reference", "view.bsp")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("reference should be absent after failed priming: %v", err)
	}

	h.origin.Recover("/maps/view.bsp")
	h.origin.Set("/maps/view.bsp", []byte("v1"))
	r := resultFor(t, h.manager.RunCycle(context.Background()), "view.bsp")
	if r.Err != nil || !r.Primed || r.Changed {
		t.Fatalf("result = %+v, want primed and unchanged", r)
	}
}

type gatedFetcher struct {
	inner   workflow.Fetcher
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedFetcher) Fetch(ctx context.Context, a asset.TrackedAsset, slot asset.Slot) (fetcher.Result, error) {
	if slot == asset.SlotLatest {
		g.once.Do(func() { close(g.entered) })
		<-g.release
	}
	return g.inner.Fetch(ctx, a, slot)
}

func TestOverlappingCycleIsSkipped(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	origin.Set("/maps/view.bsp", []byte("v1"))
	cfg := testsupport.NewConfig(t,
		testsupport.WithOrigin(origin.URL),
		testsupport.WithAssets(config.Asset{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"}),
	)
	gate := &gatedFetcher{
		inner:   fetcher.New(cfg, slots.NewStore(cfg.Paths.StateDir), logging.NewNop()),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	mgr, err := workflow.NewManager(cfg, nil, logging.NewNop(), workflow.WithFetcher(gate))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	done := make(chan workflow.CycleSummary, 1)
	go func() { done <- mgr.RunCycle(context.Background()) }()
	<-gate.entered

	overlapped := mgr.RunCycle(context.Background())
	if r := resultFor(t, overlapped, "view.bsp"); !r.Skipped {
		t.Fatalf("overlapping cycle = %+v, want skipped", r)
	}

	close(gate.release)
	first := <-done
	if r := resultFor(t, first, "view.bsp"); r.Err != nil || r.Skipped {
		t.Fatalf("first cycle = %+v", r)
	}
	mgr.Stop()
}

func TestStartPrimesAndPolls(t *testing.T) {
	h := newHarness(t, []config.Asset{{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"}})
	h.origin.Set("/maps/view.bsp", []byte("v1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.manager.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.manager.Start(ctx); err == nil {
		t.Fatal("second Start should fail while running")
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.origin.Requests("/maps/view.bsp") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("poll loop never fetched the Latest slot")
		}
		time.Sleep(20 * time.Millisecond)
	}
	if phase := h.manager.Status().Phase; phase != workflow.PhasePolling {
		t.Fatalf("phase = %s, want polling", phase)
	}

	h.manager.Stop()
	status := h.manager.Status()
	if status.Running || status.Phase != workflow.PhaseStopped {
		t.Fatalf("status after Stop = %+v", status)
	}
}
