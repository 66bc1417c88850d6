package store

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/pipeforge/pipeforged/internal/errs"
)

const (
	dirObjects = "objects"
	dirRefs    = "refs"
	dirSources = "sources"
	dirTmp     = "tmp"
)

// Store is the content-addressed object store (§4.1) plus the source blob
// area (§4.2). Objects live under objects/<id> once committed and are
// never mutated again; staging happens under tmp/ and is promoted into
// objects/ atomically via rename. sources/<type>/<algo>/<hex> holds fetched
// source blobs, content-addressed by their checksum; the file name is the
// hex digest alone, not the full "<algo>:<hex>" string.
type Store struct {
	root   string
	clones *cloneCache
	meta   *metadataIndex
}

// Open opens (creating if necessary) a Store rooted at dir.
func Open(dir string) (*Store, error) {
	for _, sub := range []string{dirObjects, dirRefs, dirSources, dirTmp} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, errs.Wrapf(ErrStoreCorrupt, "creating %s: %w", sub, err)
		}
	}

	meta, err := openMetadataIndex(filepath.Join(dir, "meta.db"))
	if err != nil {
		return nil, err
	}

	return &Store{
		root:   dir,
		clones: newCloneCache(),
		meta:   meta,
	}, nil
}

// Close releases the store's metadata index.
func (s *Store) Close() error {
	return s.meta.Close()
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// SourcesRoot returns the root of the content-addressed source blob area,
// the directory a stage sandbox's sources mount is bound to (§4.2).
func (s *Store) SourcesRoot() string {
	return filepath.Join(s.root, dirSources)
}

// Hint pre-seeds the store's clone-strategy cache for its own root device
// with name, skipping the usual reflink probe on the first Snapshot. An
// empty name is a no-op; any other value must be "reflink", "hardlink", or
// "deepcopy" (config.Config.Snapshotter, §4.1, §9).
func (s *Store) Hint(name string) error {
	strategy, err := strategyFromHint(name)
	if err != nil {
		return err
	}
	if strategy == strategyUnknown {
		return nil
	}

	info, err := os.Stat(filepath.Join(s.root, dirObjects))
	if err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "hint: %w", err)
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil
	}
	s.clones.set(uint64(st.Dev), strategy)
	return nil
}

// ObjectID is the deterministic content identifier of a committed tree
// (§3: produced by hashing stage name, canonical options, sorted input
// ids, and the upstream object id — see internal/plan for the computation
// itself; Store only knows how to stage, commit, and retrieve by id).
type ObjectID string

func (s *Store) objectPath(id ObjectID) string {
	return filepath.Join(s.root, dirObjects, string(id))
}

// Contains reports whether an object with the given id has already been
// committed, letting the executor skip execution for cached stages (§4.3,
// invariant 2).
func (s *Store) Contains(id ObjectID) bool {
	_, err := os.Stat(s.objectPath(id))
	return err == nil
}

// Mkdtemp allocates a fresh scratch directory under tmp/, guarded by
// tmp/.lock. The engine uses it for materialized inputs, per-invocation
// scratch directories, and fetcher roots; build trees come from StageTree.
func (s *Store) Mkdtemp(prefix string) (string, error) {
	l, err := lock(filepath.Join(s.root, dirTmp, ".lock"))
	if err != nil {
		return "", errs.Wrapf(ErrStoreCorrupt, "locking tmp: %w", err)
	}
	defer l.unlock()

	name := fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	path := filepath.Join(s.root, dirTmp, name)
	if err := os.Mkdir(path, 0755); err != nil {
		return "", errs.Wrapf(ErrStorageFull, "allocating scratch dir: %w", err)
	}
	return path, nil
}

// StageTree reserves a scratch directory intended to become the object
// identified by id once committed. The returned path is writable and
// owned by the caller until Commit or Discard.
func (s *Store) StageTree(id ObjectID) (string, error) {
	l, err := lock(filepath.Join(s.root, dirTmp, ".lock"))
	if err != nil {
		return "", errs.Wrapf(ErrStoreCorrupt, "locking tmp: %w", err)
	}
	defer l.unlock()

	path := filepath.Join(s.root, dirTmp, "stage-"+hex.EncodeToString([]byte(id)))
	if err := os.RemoveAll(path); err != nil {
		return "", errs.Wrapf(ErrStorageFull, "clearing stale stage dir: %w", err)
	}
	if err := os.Mkdir(path, 0755); err != nil {
		return "", errs.Wrapf(ErrStorageFull, "allocating stage dir: %w", err)
	}
	return path, nil
}

// Commit promotes a staged directory (returned by StageTree) into
// objects/<id>, making it read-only and permanent. Commit is idempotent:
// if id is already committed, the staged directory is discarded and no
// error is returned, since two pipelines racing to produce the same
// cached object is expected, not exceptional (§4.1, invariant 2).
func (s *Store) Commit(id ObjectID, stagedPath string, meta ObjectMeta) error {
	l, err := lock(filepath.Join(s.root, dirObjects, ".lock"))
	if err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "locking objects: %w", err)
	}
	defer l.unlock()

	dest := s.objectPath(id)
	if _, err := os.Stat(dest); err == nil {
		os.RemoveAll(stagedPath)
		return nil
	}

	if err := makeTreeReadOnly(stagedPath); err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "finalizing permissions: %w", err)
	}
	if err := os.Rename(stagedPath, dest); err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "committing object %s: %w", id, err)
	}

	if err := s.meta.put(string(id), meta); err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "recording metadata for %s: %w", id, err)
	}
	return nil
}

// Discard removes a staged directory without committing it, used when a
// stage fails or its output is not worth keeping.
func (s *Store) Discard(stagedPath string) error {
	return os.RemoveAll(stagedPath)
}

// Snapshot materializes a writable clone of the committed object id at
// dst, which must not already exist. It is the only way to obtain a
// mutable copy of a committed tree; the original under objects/<id> is
// never modified (§4.1).
func (s *Store) Snapshot(id ObjectID, dst string) error {
	src := s.objectPath(id)
	if _, err := os.Stat(src); err != nil {
		return errs.Wrapf(ErrNotFound, "object %s: %w", id, err)
	}
	if err := cloneTree(s.clones, src, dst); err != nil {
		return errs.Wrapf(ErrStorageFull, "snapshotting %s: %w", id, err)
	}
	return nil
}

// Meta returns the recorded ObjectMeta for a committed object.
func (s *Store) Meta(id ObjectID) (ObjectMeta, error) {
	m, ok, err := s.meta.get(string(id))
	if err != nil {
		return ObjectMeta{}, err
	}
	if !ok {
		return ObjectMeta{}, errs.Wrapf(ErrNotFound, "no metadata for %s", id)
	}
	return m, nil
}

// SetRef writes a human-readable pointer file refs/<name> containing the
// object id it names, overwriting any previous value. Refs are plain
// files, not part of the bbolt metadata index, so operators can inspect
// and edit them directly (§4.1).
func (s *Store) SetRef(name string, id ObjectID) error {
	path := filepath.Join(s.root, dirRefs, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id), 0644); err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "writing ref %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrapf(ErrStoreCorrupt, "publishing ref %s: %w", name, err)
	}
	return nil
}

// Ref reads a previously written refs/<name> pointer.
func (s *Store) Ref(name string) (ObjectID, error) {
	data, err := os.ReadFile(filepath.Join(s.root, dirRefs, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errs.Wrapf(ErrNotFound, "ref %q: %w", name, err)
		}
		return "", err
	}
	return ObjectID(data), nil
}

func makeTreeReadOnly(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return os.Chmod(path, 0555)
		}
		return os.Chmod(path, info.Mode().Perm()&^0222)
	})
}
