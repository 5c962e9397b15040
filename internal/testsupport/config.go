package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"assetwatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.DataDir = filepath.Join(base, "snapshots")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Notifications.Changes = false
	cfgVal.Notifications.Errors = false
	cfgVal.Conversion.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithOrigin points the config at a test origin server.
func WithOrigin(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Origin.BaseURL = baseURL
		b.cfg.Origin.RequestTimeout = 5
	}
}

// WithAssets replaces the tracked asset list.
func WithAssets(assets ...config.Asset) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Assets = assets
	}
}

// WithConversion toggles texture conversion.
func WithConversion(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Conversion.Enabled = enabled
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
// The ffmpeg stub writes a placeholder file at its last argument so callers
// see an output video.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			script := []byte("#!/bin/sh\nexit 0\n")
			if name == "ffmpeg" {
				script = []byte("#!/bin/sh\nfor last; do :; done\nprintf 'stub video' > \"$last\"\n")
			}
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
		b.cfg.Conversion.VerifyOutput = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
