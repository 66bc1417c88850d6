package store

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLock holds an advisory exclusive lock on a file for the duration of a
// staging-area allocation or a commit (§4.1's tmp/.lock and objects/.lock).
// Readers of already-committed objects take no lock, since committed
// objects are immutable.
type fileLock struct {
	f *os.File
}

// lock opens (creating if needed) and exclusively locks the file at path,
// blocking until it is available.
func lock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return &fileLock{f: f}, nil
}

// unlock releases the lock and closes the underlying file descriptor.
func (l *fileLock) unlock() error {
	defer l.f.Close()
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
