package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"
)

func TestWriteAtomicReplacesContent(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "view.bsp")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := WriteAtomic(dst, strings.NewReader("new content"), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len("new content")) {
		t.Fatalf("unexpected byte count %d", n)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new content" {
		t.Fatalf("content mismatch: got %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestWriteAtomicFailureKeepsPreviousContent(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "view.vtf")
	if err := os.WriteFile(dst, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("connection reset")
	_, err := WriteAtomic(dst, iotest.ErrReader(boom), 0o644)
	if !errors.Is(err, boom) {
		t.Fatalf("expected reader error, got %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "previous" {
		t.Fatalf("previous content should survive a failed write, got %q", got)
	}
	assertNoTempFiles(t, dir)
}

func TestCopyAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	if err := os.WriteFile(src, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := CopyAtomic(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestCopyVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := make([]byte, 64*1024)
	for i := range content {
		content[i] = byte(i % 251)
	}
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}
	copied, err := CopyVerified(src, dst)
	if err != nil {
		t.Fatal(err)
	}
	if copied.Bytes != int64(len(content)) {
		t.Fatalf("unexpected byte count %d", copied.Bytes)
	}
	sum := sha256.Sum256(content)
	if copied.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("unexpected digest %s", copied.SHA256)
	}
	assertNoTempFiles(t, dir)
}

func TestCopyVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := CopyVerified(filepath.Join(dir, "missing"), filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}
