package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
)

const (
	// defaultDirMode is the default permissions for the workspace directory.
	defaultDirMode = 0o750
	// defaultFileMode is the default permissions for artifact files.
	defaultFileMode = 0o600
	// fallbackName is used when an upload arrives without a usable file name.
	fallbackName = "upload"
)

// Workspace is the directory shared by all requests. Requests never see each other's
// files because every Scope prefixes its names with a fresh UUID.
type Workspace struct {
	log  *logger.Logger
	hook ReleaseHook
	dir  string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithReleaseHook registers a hook that observes every release attempt.
func WithReleaseHook(hook ReleaseHook) Option {
	return func(ws *Workspace) {
		ws.hook = hook
	}
}

// NewWorkspace creates the workspace directory if needed.
func NewWorkspace(dir string, log *logger.Logger, opts ...Option) (*Workspace, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "doc-gateway")
	}

	mkdirErr := os.MkdirAll(dir, defaultDirMode)
	if mkdirErr != nil {
		return nil, fmt.Errorf("%w: create workspace %s: %w", ErrStorage, dir, mkdirErr)
	}

	ws := &Workspace{
		log:  log,
		hook: nil,
		dir:  dir,
	}
	for _, opt := range opts {
		opt(ws)
	}

	return ws, nil
}

// Dir returns the workspace directory.
func (ws *Workspace) Dir() string { return ws.dir }

// NewScope starts the artifact lifecycle for one request.
func (ws *Workspace) NewScope() *Scope {
	return &Scope{
		ws:        ws,
		prefix:    uuid.NewString(),
		artifacts: nil,
		seq:       0,
		mu:        sync.Mutex{},
	}
}

// Scope owns the artifacts of a single request. Callers defer Release right after
// NewScope so that every artifact is removed on every exit path.
type Scope struct {
	ws        *Workspace
	prefix    string
	artifacts []*Artifact
	seq       int
	mu        sync.Mutex
}

// Prefix returns the request-scoped name prefix.
func (s *Scope) Prefix() string { return s.prefix }

// Reserve registers an artifact name without creating a file. Release tolerates the
// file never having been written.
func (s *Scope) Reserve(name string) *Artifact {
	return s.track(name, time.Now())
}

// Save writes r into a new artifact named after the caller's original file name.
func (s *Scope) Save(name string, r io.Reader) (*Artifact, error) {
	return s.Write(name, func(w io.Writer) error {
		_, copyErr := io.Copy(w, r)

		return copyErr
	})
}

// Write creates a new artifact and fills it with fill. A partially written file is
// removed before the error is returned.
func (s *Scope) Write(name string, fill func(w io.Writer) error) (*Artifact, error) {
	created := s.track(name, time.Now())

	file, createErr := os.OpenFile(
		created.path,
		os.O_CREATE|os.O_EXCL|os.O_WRONLY,
		defaultFileMode,
	)
	if createErr != nil {
		return nil, fmt.Errorf("%w: create %s: %w", ErrStorage, created.name, createErr)
	}

	fillErr := fill(file)
	closeErr := file.Close()

	writeErr := errors.Join(fillErr, closeErr)
	if writeErr != nil {
		created.Release()

		return nil, fmt.Errorf("%w: write %s: %w", ErrStorage, created.name, writeErr)
	}

	info, statErr := created.Stat()
	if statErr != nil {
		return nil, statErr
	}

	created.size = info.Size()

	return created, nil
}

// Release removes every artifact registered in the scope. It is safe to call more
// than once and alongside individual Artifact.Release calls.
func (s *Scope) Release() {
	s.mu.Lock()
	tracked := s.artifacts
	s.artifacts = nil
	s.mu.Unlock()

	for i := len(tracked) - 1; i >= 0; i-- {
		tracked[i].Release()
	}
}

func (s *Scope) track(name string, createdAt time.Time) *Artifact {
	displayName := strings.TrimSpace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	fileName := fmt.Sprintf("%s-%d-%s", s.prefix, s.seq, storageName(displayName))

	created := &Artifact{
		createdAt: createdAt,
		log:       s.ws.log,
		hook:      s.ws.hook,
		path:      filepath.Join(s.ws.dir, fileName),
		name:      displayName,
		size:      0,
		once:      sync.Once{},
	}
	s.artifacts = append(s.artifacts, created)

	return created
}

// storageName reduces a client-supplied name to a single safe path element.
func storageName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		return fallbackName
	}

	return base
}
