package hasher_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetwatch/internal/hasher"
	"assetwatch/internal/services"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestFileIsDeterministicAcrossAlgorithms(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.bin", []byte("VTF\x00 payload"))
	b := writeFile(t, dir, "b.bin", []byte("VTF\x00 payload"))
	c := writeFile(t, dir, "c.bin", []byte("VTF\x00 paylobd"))

	for _, algo := range hasher.Algorithms() {
		t.Run(algo, func(t *testing.T) {
			da, err := hasher.File(a, algo)
			if err != nil {
				t.Fatalf("digest a: %v", err)
			}
			db, err := hasher.File(b, algo)
			if err != nil {
				t.Fatalf("digest b: %v", err)
			}
			dc, err := hasher.File(c, algo)
			if err != nil {
				t.Fatalf("digest c: %v", err)
			}
			if da != db {
				t.Fatalf("identical files produced different digests: %s vs %s", da, db)
			}
			if da == dc {
				t.Fatalf("different files produced the same digest %s", da)
			}
			if strings.ToLower(da.String()) != da.String() {
				t.Fatalf("digest should be lowercase hex: %s", da)
			}
		})
	}
}

func TestKnownSHA256(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty", nil)
	got, err := hasher.File(path, "")
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got.String() != want {
		t.Fatalf("unexpected sha256 of empty input: %s", got)
	}
	if got.Short() != want[:12] {
		t.Fatalf("unexpected short digest: %s", got.Short())
	}
}

func TestReaderMatchesFile(t *testing.T) {
	data := []byte(strings.Repeat("bsp", 4096))
	path := writeFile(t, t.TempDir(), "map.bsp", data)
	fromFile, err := hasher.File(path, "blake2b-256")
	if err != nil {
		t.Fatalf("file digest: %v", err)
	}
	fromReader, err := hasher.Reader(strings.NewReader(string(data)), "BLAKE2B-256")
	if err != nil {
		t.Fatalf("reader digest: %v", err)
	}
	if fromFile != fromReader {
		t.Fatalf("reader and file digests differ: %s vs %s", fromReader, fromFile)
	}
}

func TestUnsupportedAlgorithm(t *testing.T) {
	path := writeFile(t, t.TempDir(), "x", []byte("x"))
	_, err := hasher.File(path, "crc32")
	if !errors.Is(err, services.ErrUnsupportedAlgorithm) {
		t.Fatalf("expected ErrUnsupportedAlgorithm, got %v", err)
	}
	if hasher.Supported("crc32") {
		t.Fatal("crc32 should not be supported")
	}
	if !hasher.Supported("SHA3-256") {
		t.Fatal("sha3-256 should be supported case-insensitively")
	}
}

func TestMissingFileIsFilesystemError(t *testing.T) {
	_, err := hasher.File(filepath.Join(t.TempDir(), "missing"), "sha256")
	if !errors.Is(err, services.ErrFilesystem) {
		t.Fatalf("expected ErrFilesystem, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist cause, got %v", err)
	}
}
