package store

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/pipeforge/pipeforged/internal/errs"
)

// cloneStrategy names a way of materializing a writable copy of a
// committed tree. The store probes reflink support once per filesystem
// and remembers the result, since FICLONE either always works or always
// fails for a given mount (§4.1, §9).
type cloneStrategy int

const (
	strategyUnknown cloneStrategy = iota
	strategyReflink
	strategyHardlink
	strategyDeepCopy
)

// cloneCache remembers, per store root, which strategy its filesystem
// supports so repeated Snapshot calls don't re-probe.
type cloneCache struct {
	mu    sync.Mutex
	byDev map[uint64]cloneStrategy
}

func newCloneCache() *cloneCache {
	return &cloneCache{byDev: make(map[uint64]cloneStrategy)}
}

func (c *cloneCache) get(dev uint64) cloneStrategy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byDev[dev]
}

func (c *cloneCache) set(dev uint64, s cloneStrategy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byDev[dev] = s
}

// strategyFromHint maps a config.Config.Snapshotter value to a
// cloneStrategy. An empty name means "no hint, probe normally".
func strategyFromHint(name string) (cloneStrategy, error) {
	switch name {
	case "":
		return strategyUnknown, nil
	case "reflink":
		return strategyReflink, nil
	case "hardlink":
		return strategyHardlink, nil
	case "deepcopy":
		return strategyDeepCopy, nil
	default:
		return strategyUnknown, errs.Wrapf(ErrInvalidSnapshotter, "%q", name)
	}
}

// cloneTree copies the file tree rooted at src to dst, which must not
// already exist. It tries, in order: reflink (copy-on-write, instant,
// space-sharing), hardlink (instant, shares the source's inodes, fails
// across devices), and finally a full byte-for-byte copy.
// The chosen strategy is cached per source device so later calls for
// objects on the same filesystem skip straight to what works.
func cloneTree(cache *cloneCache, src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	var dev uint64
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		dev = uint64(st.Dev)
	}

	strategy := cache.get(dev)
	if strategy == strategyUnknown {
		strategy = strategyReflink
	}

	for {
		var err error
		switch strategy {
		case strategyReflink:
			err = cloneTreeWith(src, dst, cloneFileReflink)
		case strategyHardlink:
			err = cloneTreeWith(src, dst, cloneFileHardlink)
		default:
			err = cloneTreeWith(src, dst, cloneFileDeepCopy)
		}
		if err == nil {
			cache.set(dev, strategy)
			return nil
		}
		if strategy == strategyDeepCopy {
			return err
		}
		os.RemoveAll(dst)
		strategy++
	}
}

type fileCloner func(src, dst string, mode os.FileMode) error

func cloneTreeWith(src, dst string, clone fileCloner) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if info.IsDir() {
		// Committed directories are read-only (0555); the clone's own
		// directories keep owner write so the copy stays writable.
		if err := os.MkdirAll(dst, info.Mode().Perm()|0200); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := cloneTreeWith(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name()), clone); err != nil {
				return err
			}
		}
		return nil
	}

	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}

	return clone(src, dst, info.Mode().Perm())
}

func cloneFileReflink(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := unix.IoctlFileClone(int(out.Fd()), int(in.Fd())); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

func cloneFileHardlink(src, dst string, _ os.FileMode) error {
	return os.Link(src, dst)
}

func cloneFileDeepCopy(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}
	return out.Sync()
}
