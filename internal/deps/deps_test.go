package deps

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestResolveBinary(t *testing.T) {
	tmp := t.TempDir()
	script := []byte("#!/bin/sh\nexit 0\n")
	exe := filepath.Join(tmp, executableName("ffmpeg"))
	if err := os.WriteFile(exe, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	plain := filepath.Join(tmp, "plain")
	if err := os.WriteFile(plain, script, 0o644); err != nil {
		t.Fatalf("write plain: %v", err)
	}
	t.Setenv("PATH", tmp)

	tests := []struct {
		name    string
		command string
		want    string
		wantErr bool
	}{
		{name: "absolute", command: exe, want: exe},
		{name: "on path", command: executableName("ffmpeg"), want: exe},
		{name: "empty", command: "  ", wantErr: true},
		{name: "missing", command: "clearly-not-present-binary", wantErr: true},
		{name: "missing path", command: filepath.Join(tmp, "nope"), wantErr: true},
		{name: "not executable", command: plain, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ResolveBinary(tc.command)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveBinary: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCheckFFmpegReportsVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub")
	}
	tmp := t.TempDir()
	stub := filepath.Join(tmp, "ffmpeg")
	script := []byte("#!/bin/sh\necho 'ffmpeg version 7.1 Copyright (c) the FFmpeg developers'\necho 'built with gcc'\n")
	if err := os.WriteFile(stub, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	status := CheckFFmpeg(context.Background(), "FFmpeg", stub, "Required for texture videos", false)
	if !status.Available {
		t.Fatalf("expected available, got detail %q", status.Detail)
	}
	if status.Detail != "ffmpeg version 7.1 Copyright (c) the FFmpeg developers" {
		t.Fatalf("unexpected version detail %q", status.Detail)
	}
}

func TestCheckFFmpegNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFmpeg(context.Background(), "FFprobe", "ffprobe", "Verifies videos", true)
	if status.Available {
		t.Fatal("expected ffprobe resolution to fail")
	}
	if status.Detail == "" || !status.Optional {
		t.Fatalf("unexpected status %#v", status)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
