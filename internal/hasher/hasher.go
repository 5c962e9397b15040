package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"assetwatch/internal/services"
)

// Default is the digest algorithm used when none is configured.
const Default = "sha256"

// Digest is a lowercase hex content digest. Two digests are equal exactly when
// the files they were computed from have identical bytes (up to collisions).
type Digest string

func (d Digest) String() string {
	return string(d)
}

// Short returns the first 12 hex characters for log output.
func (d Digest) Short() string {
	if len(d) <= 12 {
		return string(d)
	}
	return string(d[:12])
}

var algorithms = map[string]func() hash.Hash{
	"sha256":   sha256.New,
	"sha1":     sha1.New,
	"sha512":   sha512.New,
	"md5":      md5.New,
	"sha3-256": sha3.New256,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	},
}

// Algorithms lists the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supported reports whether name is a known algorithm.
func Supported(name string) bool {
	_, ok := algorithms[normalize(name)]
	return ok
}

// New returns a fresh hash for the named algorithm.
func New(algorithm string) (hash.Hash, error) {
	ctor, ok := algorithms[normalize(algorithm)]
	if !ok {
		return nil, services.Wrap(services.ErrUnsupportedAlgorithm, "hasher", "new", fmt.Sprintf("algorithm %q", algorithm), nil)
	}
	return ctor(), nil
}

// File streams the file at path through the named algorithm.
func File(path, algorithm string) (Digest, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	file, err := os.Open(path)
	if err != nil {
		return "", services.Wrap(services.ErrFilesystem, "hasher", "open", path, err)
	}
	defer file.Close()
	if _, err := io.Copy(h, file); err != nil {
		return "", services.Wrap(services.ErrFilesystem, "hasher", "read", path, err)
	}
	return Sum(h), nil
}

// Reader digests everything read from r.
func Reader(r io.Reader, algorithm string) (Digest, error) {
	h, err := New(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", services.Wrap(services.ErrFilesystem, "hasher", "read", "stream", err)
	}
	return Sum(h), nil
}

// Sum renders the current state of h as a Digest.
func Sum(h hash.Hash) Digest {
	return Digest(hex.EncodeToString(h.Sum(nil)))
}

func normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default
	}
	return name
}
