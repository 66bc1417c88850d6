package store

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// ContentHash is a string of the form "<algo>:<hex>" naming an immutable
// blob (§3). The algorithm set is closed and small (md5, sha1, sha256,
// sha384, sha512), all available from crypto/*; a third-party multihash
// library would add indirection without adding capability.
type ContentHash string

var hexLen = map[string]int{
	"md5":    32,
	"sha1":   40,
	"sha256": 64,
	"sha384": 96,
	"sha512": 128,
}

// ParseContentHash validates s against the "<algo>:<hex>" grammar.
func ParseContentHash(s string) (ContentHash, error) {
	algo, hexPart, ok := strings.Cut(s, ":")
	if !ok {
		return "", errs.Wrapf(ErrInvalidHash, "%q: missing algo prefix", s)
	}

	want, known := hexLen[algo]
	if !known {
		return "", errs.Wrapf(ErrInvalidHash, "%q: unknown algorithm %q", s, algo)
	}
	if len(hexPart) != want {
		return "", errs.Wrapf(ErrInvalidHash, "%q: want %d hex chars for %s, got %d", s, want, algo, len(hexPart))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", errs.Wrapf(ErrInvalidHash, "%q: not valid hex: %w", s, err)
	}

	return ContentHash(s), nil
}

// Algo returns the hash's algorithm name.
func (h ContentHash) Algo() string {
	algo, _, _ := strings.Cut(string(h), ":")
	return algo
}

// Hex returns the hash's lowercase hex digest.
func (h ContentHash) Hex() string {
	_, hexPart, _ := strings.Cut(string(h), ":")
	return hexPart
}

func newHasher(algo string) (hash.Hash, bool) {
	switch algo {
	case "md5":
		return md5.New(), true
	case "sha1":
		return sha1.New(), true
	case "sha256":
		return sha256.New(), true
	case "sha384":
		return sha512.New384(), true
	case "sha512":
		return sha512.New(), true
	default:
		return nil, false
	}
}

// HashBytes computes the ContentHash of data under the given algorithm.
func HashBytes(algo string, data []byte) (ContentHash, error) {
	h, ok := newHasher(algo)
	if !ok {
		return "", errs.Wrapf(ErrInvalidHash, "unknown algorithm %q", algo)
	}
	h.Write(data)
	return ContentHash(algo + ":" + hex.EncodeToString(h.Sum(nil))), nil
}
