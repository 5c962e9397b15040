// Package detect decides whether the latest fetch of an asset differs from its
// reference copy by comparing content digests of the two slot files.
package detect

import (
	"assetwatch/internal/asset"
	"assetwatch/internal/hasher"
	"assetwatch/internal/slots"
)

// Comparison carries both digests for logging and the change history.
type Comparison struct {
	Reference hasher.Digest
	Latest    hasher.Digest
}

// Changed reports whether the digests differ.
func (c Comparison) Changed() bool {
	return c.Reference != c.Latest
}

// Detector compares slot digests. It holds no per-asset state.
type Detector struct {
	store     *slots.Store
	algorithm string
}

// New returns a Detector using the named hash algorithm.
func New(store *slots.Store, algorithm string) *Detector {
	return &Detector{store: store, algorithm: algorithm}
}

// Compare re-hashes both slot files. A missing slot surfaces as
// services.ErrFilesystem from the hasher.
func (d *Detector) Compare(a asset.TrackedAsset) (Comparison, error) {
	ref, err := hasher.File(d.store.Path(a, asset.SlotReference), d.algorithm)
	if err != nil {
		return Comparison{}, err
	}
	latest, err := hasher.File(d.store.Path(a, asset.SlotLatest), d.algorithm)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Reference: ref, Latest: latest}, nil
}

// HasChanged reports whether the Latest slot differs from Reference.
func (d *Detector) HasChanged(a asset.TrackedAsset) (bool, error) {
	cmp, err := d.Compare(a)
	if err != nil {
		return false, err
	}
	return cmp.Changed(), nil
}
