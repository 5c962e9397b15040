package asset

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// TextureExtension marks the GPU texture container format.
const TextureExtension = ".vtf"

// TrackedAsset pairs an origin path with the local filename used for both slots
// and the change history.
type TrackedAsset struct {
	RemotePath string
	LocalName  string
}

// IsTexture reports whether the asset is a VTF texture that should be converted.
func (a TrackedAsset) IsTexture() bool {
	return strings.EqualFold(filepath.Ext(a.LocalName), TextureExtension)
}

// Kind returns a short lowercase label for the asset type ("texture", "map", ...).
func (a TrackedAsset) Kind() string {
	switch strings.ToLower(filepath.Ext(a.LocalName)) {
	case TextureExtension:
		return "texture"
	case ".bsp":
		return "map"
	case "":
		return "file"
	default:
		return strings.TrimPrefix(strings.ToLower(filepath.Ext(a.LocalName)), ".")
	}
}

func (a TrackedAsset) String() string {
	return a.LocalName
}

// Slot identifies one of the two local copies kept per asset.
type Slot string

const (
	SlotReference Slot = "reference"
	SlotLatest    Slot = "latest"
)

// Valid reports whether s names a known slot.
func (s Slot) Valid() bool {
	return s == SlotReference || s == SlotLatest
}

// ChangeEvent records one confirmed content change.
type ChangeEvent struct {
	Asset          TrackedAsset
	DetectedAt     time.Time
	CycleID        string
	SnapshotDir    string
	ArchivedPath   string
	VideoPath      string
	PreviousDigest string
	CurrentDigest  string
	Bytes          int64
	// ConversionError is set when the texture video could not be produced.
	ConversionError string
}

// Set is an immutable, validated list of tracked assets.
type Set struct {
	assets []TrackedAsset
	byName map[string]int
}

// NewSet validates the assets and returns them as a Set. Local names must be
// unique bare filenames; remote paths must be absolute origin paths.
func NewSet(assets []TrackedAsset) (Set, error) {
	if len(assets) == 0 {
		return Set{}, errors.New("at least one tracked asset is required")
	}
	set := Set{
		assets: make([]TrackedAsset, 0, len(assets)),
		byName: make(map[string]int, len(assets)),
	}
	for i, a := range assets {
		a.RemotePath = strings.TrimSpace(a.RemotePath)
		a.LocalName = strings.TrimSpace(a.LocalName)
		if a.LocalName == "" {
			a.LocalName = path.Base(a.RemotePath)
		}
		if err := validate(a); err != nil {
			return Set{}, fmt.Errorf("asset %d: %w", i, err)
		}
		if _, dup := set.byName[a.LocalName]; dup {
			return Set{}, fmt.Errorf("asset %d: duplicate local name %q", i, a.LocalName)
		}
		set.byName[a.LocalName] = len(set.assets)
		set.assets = append(set.assets, a)
	}
	return set, nil
}

func validate(a TrackedAsset) error {
	if a.RemotePath == "" || !strings.HasPrefix(a.RemotePath, "/") {
		return fmt.Errorf("remote path %q must start with /", a.RemotePath)
	}
	if strings.Contains(a.RemotePath, "..") {
		return fmt.Errorf("remote path %q must not contain ..", a.RemotePath)
	}
	name := a.LocalName
	if name == "" || name == "." || name == "/" {
		return errors.New("local name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("local name %q must be a bare filename", name)
	}
	return nil
}

// All returns a copy of the tracked assets in configuration order.
func (s Set) All() []TrackedAsset {
	out := make([]TrackedAsset, len(s.assets))
	copy(out, s.assets)
	return out
}

// Len returns the number of tracked assets.
func (s Set) Len() int {
	return len(s.assets)
}

// Lookup finds an asset by local name.
func (s Set) Lookup(localName string) (TrackedAsset, bool) {
	idx, ok := s.byName[strings.TrimSpace(localName)]
	if !ok {
		return TrackedAsset{}, false
	}
	return s.assets[idx], true
}
