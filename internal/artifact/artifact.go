// Package artifact manages the temporary files created while handling a single
// request. Every artifact belongs to a Scope and is removed from disk exactly once,
// whichever way the request ends.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/book-expert/logger"
)

var (
	// ErrStorage is returned when an artifact cannot be created or written.
	ErrStorage = errors.New("artifact storage failure")
	// ErrNotFound is returned when an artifact's file no longer exists.
	ErrNotFound = errors.New("artifact not found")
)

// ReleaseHook is notified after every release attempt. A nil error means the file
// was removed or was already gone.
type ReleaseHook func(releaseErr error)

// Artifact is a temporary file owned by exactly one request.
type Artifact struct {
	createdAt time.Time
	log       *logger.Logger
	hook      ReleaseHook
	path      string
	name      string
	size      int64
	once      sync.Once
}

// Path returns the on-disk location of the artifact.
func (a *Artifact) Path() string { return a.path }

// Name returns the original display name supplied by the caller.
func (a *Artifact) Name() string { return a.name }

// Size returns the number of bytes recorded when the artifact was written.
func (a *Artifact) Size() int64 { return a.size }

// CreatedAt returns the time the artifact was created.
func (a *Artifact) CreatedAt() time.Time { return a.createdAt }

// Stat returns the current file info, mapping a missing file to ErrNotFound.
func (a *Artifact) Stat() (os.FileInfo, error) {
	info, statErr := os.Stat(a.path)
	if statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, a.name)
		}

		return nil, fmt.Errorf("%w: stat %s: %w", ErrStorage, a.name, statErr)
	}

	return info, nil
}

// Open opens the artifact for reading.
func (a *Artifact) Open() (*os.File, error) {
	file, openErr := os.Open(a.path)
	if openErr != nil {
		if errors.Is(openErr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, a.name)
		}

		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, a.name, openErr)
	}

	return file, nil
}

// Release deletes the artifact's file. Only the first call has any effect. A file
// that is already gone counts as released; any other failure is logged and never
// returned.
func (a *Artifact) Release() {
	a.once.Do(func() {
		removeErr := os.Remove(a.path)
		if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
			removeErr = nil
		}

		if removeErr != nil && a.log != nil {
			a.log.Warn("Failed to remove temp artifact '%s': %v", a.path, removeErr)
		}

		if a.hook != nil {
			a.hook(removeErr)
		}
	})
}
