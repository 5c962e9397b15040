// Package slots manages the two on-disk copies kept per tracked asset: the
// Reference slot (last archived version) and the Latest slot (most recent
// fetch). Every write is a temp file plus rename so a slot file is always
// either absent or complete.
package slots

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"assetwatch/internal/asset"
	"assetwatch/internal/fileutil"
	"assetwatch/internal/services"
)

// Store resolves slot paths beneath a state directory.
type Store struct {
	root string
}

// NewStore returns a Store rooted at stateDir.
func NewStore(stateDir string) *Store {
	return &Store{root: stateDir}
}

// Dir returns the directory for slot.
func (s *Store) Dir(slot asset.Slot) string {
	return filepath.Join(s.root, string(slot))
}

// Path returns the slot file for a.
func (s *Store) Path(a asset.TrackedAsset, slot asset.Slot) string {
	return filepath.Join(s.Dir(slot), a.LocalName)
}

// Ensure creates both slot directories.
func (s *Store) Ensure() error {
	for _, slot := range []asset.Slot{asset.SlotReference, asset.SlotLatest} {
		if err := os.MkdirAll(s.Dir(slot), 0o755); err != nil {
			return services.Wrap(services.ErrFilesystem, "slots", "ensure", s.Dir(slot), err)
		}
	}
	return nil
}

// Exists reports whether a's slot file is present.
func (s *Store) Exists(a asset.TrackedAsset, slot asset.Slot) (bool, error) {
	_, err := os.Stat(s.Path(a, slot))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, services.Wrap(services.ErrFilesystem, "slots", "stat", s.Path(a, slot), err)
	}
}

// Primed reports whether a has a Reference copy.
func (s *Store) Primed(a asset.TrackedAsset) (bool, error) {
	return s.Exists(a, asset.SlotReference)
}

// Publish atomically replaces a's slot file with the bytes read from r.
// Errors from r are returned unwrapped so callers can classify transport
// failures themselves.
func (s *Store) Publish(a asset.TrackedAsset, slot asset.Slot, r io.Reader) (int64, error) {
	if !slot.Valid() {
		return 0, services.Wrap(services.ErrFilesystem, "slots", "publish", fmt.Sprintf("unknown slot %q", slot), nil)
	}
	if err := os.MkdirAll(s.Dir(slot), 0o755); err != nil {
		return 0, services.Wrap(services.ErrFilesystem, "slots", "publish", s.Dir(slot), err)
	}
	return fileutil.WriteAtomic(s.Path(a, slot), r, 0o644)
}

// Promote copies the Latest bytes over the Reference slot.
func (s *Store) Promote(a asset.TrackedAsset) error {
	if err := os.MkdirAll(s.Dir(asset.SlotReference), 0o755); err != nil {
		return services.Wrap(services.ErrFilesystem, "slots", "promote", s.Dir(asset.SlotReference), err)
	}
	if _, err := fileutil.CopyAtomic(s.Path(a, asset.SlotLatest), s.Path(a, asset.SlotReference)); err != nil {
		return services.Wrap(services.ErrFilesystem, "slots", "promote", a.LocalName, err)
	}
	return nil
}

// Info describes one slot file for status output.
type Info struct {
	Slot    asset.Slot
	Path    string
	Present bool
	Size    int64
	ModTime int64
}

// Describe stats both slots of a.
func (s *Store) Describe(a asset.TrackedAsset) ([]Info, error) {
	out := make([]Info, 0, 2)
	for _, slot := range []asset.Slot{asset.SlotReference, asset.SlotLatest} {
		info := Info{Slot: slot, Path: s.Path(a, slot)}
		st, err := os.Stat(info.Path)
		switch {
		case err == nil:
			info.Present = true
			info.Size = st.Size()
			info.ModTime = st.ModTime().Unix()
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, services.Wrap(services.ErrFilesystem, "slots", "stat", info.Path, err)
		}
		out = append(out, info)
	}
	return out, nil
}
