package store

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// sourceLocks serializes concurrent fetches of the same blob within this
// process: two stages that both need the same source by coincidence
// should not both run the fetcher, since only one writer can win the
// atomic rename anyway (§4.2).
type sourceLocks struct {
	mu    sync.Mutex
	inUse map[string]*sync.Mutex
}

func newSourceLocks() *sourceLocks {
	return &sourceLocks{inUse: make(map[string]*sync.Mutex)}
}

func (s *sourceLocks) acquire(key string) func() {
	s.mu.Lock()
	l, ok := s.inUse[key]
	if !ok {
		l = &sync.Mutex{}
		s.inUse[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

var globalSourceLocks = newSourceLocks()

// SourcePath returns the path a fetched blob for the given source type
// and content hash would live at, whether or not it has been fetched.
func (s *Store) SourcePath(sourceType string, hash ContentHash) string {
	return filepath.Join(s.root, dirSources, sourceType, hash.Algo(), hash.Hex())
}

// HasSource reports whether a source blob is already present and valid.
func (s *Store) HasSource(sourceType string, hash ContentHash) bool {
	_, err := os.Stat(s.SourcePath(sourceType, hash))
	return err == nil
}

// StageSource returns a scratch path the caller should write a candidate
// blob to before calling CommitSource. Using a separate staging name
// keeps a half-downloaded blob from ever being visible at its final,
// content-addressed path.
func (s *Store) StageSource(sourceType string, hash ContentHash) (string, func(), error) {
	release := globalSourceLocks.acquire(sourceType + ":" + string(hash))

	dir := filepath.Join(s.root, dirSources, sourceType, hash.Algo())
	if err := os.MkdirAll(dir, 0755); err != nil {
		release()
		return "", nil, errs.Wrapf(ErrStorageFull, "creating source dir: %w", err)
	}
	return filepath.Join(dir, hash.Hex()+".tmp"), release, nil
}

// CommitSource verifies that the blob staged at tmpPath hashes to hash
// and, if so, renames it into place atomically. A mismatch returns
// ErrSourceInvalid and deletes the staged file (§4.2: "source fetch
// failures ... abort the pipeline before any stage executes").
func (s *Store) CommitSource(sourceType string, hash ContentHash, tmpPath string) error {
	f, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	hasher, ok := newHasher(hash.Algo())
	if !ok {
		f.Close()
		return errs.Wrapf(ErrInvalidHash, "unknown algorithm %q", hash.Algo())
	}
	_, err = io.Copy(hasher, f)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	got := hex.EncodeToString(hasher.Sum(nil))
	if got != hash.Hex() {
		os.Remove(tmpPath)
		return errs.Wrapf(ErrSourceInvalid, "%s: expected %s, got %s:%s", sourceType, hash, hash.Algo(), got)
	}

	final := s.SourcePath(sourceType, hash)
	if err := os.Chmod(tmpPath, 0444); err != nil {
		os.Remove(tmpPath)
		return errs.Wrapf(ErrStoreCorrupt, "finalizing source blob: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return errs.Wrapf(ErrStoreCorrupt, "committing source blob: %w", err)
	}
	return nil
}
