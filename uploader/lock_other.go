//go:build !unix

package uploader

import (
	"errors"
	"fmt"
	"os"
)

// ArchiveLock is an exclusive lock file next to the archive.
type ArchiveLock struct {
	path string
}

// AcquireLock creates <archive>.lock exclusively. A second caller fails
// immediately with ErrArchiveLocked.
func AcquireLock(archivePath string) (*ArchiveLock, error) {
	if err := ensureParentDir(archivePath); err != nil {
		return nil, err
	}
	p := lockPath(archivePath)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", archivePath, ErrArchiveLocked)
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()
	return &ArchiveLock{path: p}, nil
}

// Release removes the lock file. Safe to call on nil.
func (l *ArchiveLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	return err
}
