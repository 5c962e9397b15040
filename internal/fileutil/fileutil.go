package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic streams r into a temp file beside path, fsyncs it, and renames it
// over path. Readers of path observe either the previous content or the complete
// new content, never a partial write.
func WriteAtomic(path string, r io.Reader, mode os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	written, err := io.Copy(tmp, r)
	if err != nil {
		return written, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return written, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(mode); err != nil {
		return written, fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return written, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return written, nil
}

// CopyAtomic copies src to dst through WriteAtomic with default permissions (0o644).
func CopyAtomic(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	return WriteAtomic(dst, in, 0o644)
}

// ErrCopyMismatch reports that a copy did not reproduce its source.
var ErrCopyMismatch = errors.New("copy does not match source")

// VerifiedCopy describes a copy whose bytes were re-read and compared.
type VerifiedCopy struct {
	Bytes  int64
	SHA256 string
}

// CopyVerified copies src to dst through WriteAtomic, then re-reads dst and
// compares size and SHA-256 with what was read from src. dst is removed on
// mismatch.
func CopyVerified(src, dst string) (VerifiedCopy, error) {
	in, err := os.Open(src)
	if err != nil {
		return VerifiedCopy{}, err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return VerifiedCopy{}, fmt.Errorf("stat source: %w", err)
	}

	srcSum := sha256.New()
	written, err := WriteAtomic(dst, io.TeeReader(in, srcSum), 0o644)
	if err != nil {
		return VerifiedCopy{Bytes: written}, err
	}
	result := VerifiedCopy{Bytes: written, SHA256: hex.EncodeToString(srcSum.Sum(nil))}
	if written != info.Size() {
		_ = os.Remove(dst)
		return result, fmt.Errorf("%w: source %d bytes, copied %d", ErrCopyMismatch, info.Size(), written)
	}

	dstSum, err := fileSHA256(dst)
	if err != nil {
		return result, err
	}
	if dstSum != result.SHA256 {
		_ = os.Remove(dst)
		return result, fmt.Errorf("%w: sha256 %s, copied %s", ErrCopyMismatch, result.SHA256, dstSum)
	}
	return result, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
