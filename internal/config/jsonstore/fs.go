package jsonstore

import (
	"io"
	"io/fs"
	"os"
)

// FS is the filesystem interface the store writes through.
// This allows injection of failing filesystems in tests.
type FS interface {
	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Stat returns file info for a path.
	Stat(path string) (fs.FileInfo, error)

	// CreateTemp creates a new temporary file in dir.
	CreateTemp(dir, pattern string) (File, error)

	// Rename renames (moves) a file.
	Rename(oldpath, newpath string) error

	// Remove removes a file.
	Remove(path string) error

	// SyncDir flushes directory metadata so a completed rename survives a
	// crash. Filesystems that cannot do this return nil.
	SyncDir(path string) error

	// Lock takes an exclusive lock named by path, serialising writers
	// across processes. The returned func releases it.
	Lock(path string) (func(), error)
}

// File is the subset of *os.File used for temp-file writes.
type File interface {
	io.Writer
	Chmod(mode fs.FileMode) error
	Sync() error
	Close() error
	Name() string
}

// OSFS implements FS using the os package.
type OSFS struct{}

func (OSFS) MkdirAll(path string, perm fs.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

func (OSFS) CreateTemp(dir, pattern string) (File, error) {
	return os.CreateTemp(dir, pattern)
}

func (OSFS) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (OSFS) Remove(path string) error {
	return os.Remove(path)
}

func (OSFS) SyncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer d.Close()
	// Some platforms refuse to fsync a directory handle.
	_ = d.Sync()
	return nil
}

func (OSFS) Lock(path string) (func(), error) {
	return lockFile(path)
}
