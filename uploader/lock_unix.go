//go:build unix

package uploader

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ArchiveLock is an exclusive advisory lock on <archive>.lock.
type ArchiveLock struct {
	f *os.File
}

// AcquireLock locks archivePath for this process. A second caller fails
// immediately with ErrArchiveLocked.
func AcquireLock(archivePath string) (*ArchiveLock, error) {
	if err := ensureParentDir(archivePath); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(lockPath(archivePath), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", archivePath, ErrArchiveLocked)
		}
		return nil, fmt.Errorf("flock %s: %w", lockPath(archivePath), err)
	}
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	return &ArchiveLock{f: f}, nil
}

// Release drops the lock. Safe to call on nil.
func (l *ArchiveLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
