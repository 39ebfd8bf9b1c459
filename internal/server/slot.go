package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// stagingPrefix marks in-flight upload files in the slot directory.
const stagingPrefix = ".upload-"

// Slot is the single fixed location holding the current artifact.
//
// Installs hold the write lock for the rename (and the delete-then-retry
// fallback); readers hold the read lock only while opening the file. An open
// descriptor keeps pointing at the old inode after a replacement, so
// streaming happens outside the lock and still sees one artifact in full.
type Slot struct {
	dir         string
	name        string
	contentType string

	mu     sync.RWMutex
	rename func(oldpath, newpath string) error
}

// NewSlot prepares dir and returns a slot for the artifact called name.
func NewSlot(dir, name, contentType string) (*Slot, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, stagingPrefix) {
		return nil, fmt.Errorf("invalid slot name %q", name)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create slot dir: %w", err)
	}
	return &Slot{
		dir:         dir,
		name:        name,
		contentType: contentType,
		rename:      os.Rename,
	}, nil
}

func (s *Slot) Dir() string         { return s.dir }
func (s *Slot) Name() string        { return s.name }
func (s *Slot) Path() string        { return filepath.Join(s.dir, s.name) }
func (s *Slot) ContentType() string { return s.contentType }

// CreateTemp opens a fresh staging file next to the slot so the final rename
// never crosses a filesystem boundary.
func (s *Slot) CreateTemp() (*os.File, error) {
	f, err := os.CreateTemp(s.dir, stagingPrefix+uuid.NewString()+"-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	return f, nil
}

// Install moves the staged file at tmpPath onto the slot.
//
// The rename is tried once. If the platform refuses because the destination
// exists, the current artifact is removed and the rename retried exactly
// once more. Every failure is returned wrapped in ErrInstall; the caller owns
// tmpPath and removes it.
func (s *Slot) Install(tmpPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := s.Path()
	err := s.rename(tmpPath, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %w", ErrInstall, err)
	}

	if rmErr := os.Remove(dst); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove previous artifact: %w", ErrInstall, rmErr)
	}
	if err := s.rename(tmpPath, dst); err != nil {
		return fmt.Errorf("%w: retry after remove: %w", ErrInstall, err)
	}
	return nil
}

// Open returns the current artifact for reading. It fails with
// ErrArtifactNotFound when nothing has been installed yet.
func (s *Slot) Open() (*os.File, os.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrArtifactNotFound
		}
		return nil, nil, fmt.Errorf("open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("stat artifact: %w", err)
	}
	return f, info, nil
}

// Stat reports the current artifact, or ErrArtifactNotFound.
func (s *Slot) Stat() (os.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, err := os.Stat(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrArtifactNotFound
	}
	return info, err
}
