// Package artifact is the project-scoped collection of generated source files.
// Callers take exclusive access to one artifact with Acquire, then read and
// replace its whole content; nothing is ever patched in place.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sync"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

var (
	// ErrUnavailable wraps every I/O failure of the underlying project.
	ErrUnavailable = errors.New("artifact store unavailable")
	// ErrExist is returned by Create for an artifact that is already present.
	ErrExist = errors.New("artifact already exists")
)

var tmpSeq atomic.Uint64

// Store is the capability the generators need from a project tree.
type Store interface {
	// Acquire grants exclusive read-modify-write access to name until the
	// handle is released.
	Acquire(name string) (*Handle, error)
	Exists(h *Handle) (bool, error)
	Load(h *Handle) ([]byte, error)
	// Create writes the first content of an absent artifact.
	Create(h *Handle, content []byte) error
	// Save atomically replaces the full content of an artifact.
	Save(h *Handle, content []byte) error
}

// Handle names one acquired artifact.
type Handle struct {
	name    string
	release func()
	once    sync.Once
}

// NewHandle returns a handle whose Release calls release once.
// Store implementations use it; release may be nil.
func NewHandle(name string, release func()) *Handle {
	return &Handle{name: name, release: release}
}

func (h *Handle) Name() string { return h.name }

// Release gives up exclusive access. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
}

// FS implements Store on a billy.Filesystem rooted at the project directory.
// Artifact names are slash-separated paths relative to that root.
type FS struct {
	fs       billy.Filesystem
	filePerm fs.FileMode

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFS wraps a filesystem (osfs for projects on disk, memfs in tests).
func NewFS(bfs billy.Filesystem) *FS {
	return &FS{
		fs:       bfs,
		filePerm: 0o644,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Open returns a store for the project directory root.
func Open(root string) (*FS, error) {
	bfs := osfs.New(root)
	info, err := bfs.Stat(".")
	if err != nil {
		return nil, fmt.Errorf("%w: open project %s: %w", ErrUnavailable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: project root %s is not a directory", ErrUnavailable, root)
	}
	return NewFS(bfs), nil
}

func (s *FS) Acquire(name string) (*Handle, error) {
	name = path.Clean("/" + name)[1:]
	if name == "" {
		return nil, fmt.Errorf("%w: empty artifact name", ErrUnavailable)
	}

	s.mu.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mu.Unlock()

	l.Lock()
	return NewHandle(name, l.Unlock), nil
}

func (s *FS) Exists(h *Handle) (bool, error) {
	_, err := s.fs.Stat(h.Name())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %w", ErrUnavailable, h.Name(), err)
}

func (s *FS) Load(h *Handle) ([]byte, error) {
	data, err := util.ReadFile(s.fs, h.Name())
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, h.Name(), err)
	}
	return data, nil
}

func (s *FS) Create(h *Handle, content []byte) error {
	exists, err := s.Exists(h)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("create %s: %w", h.Name(), ErrExist)
	}
	if dir := path.Dir(h.Name()); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir for %s: %w", ErrUnavailable, h.Name(), err)
		}
	}
	return s.replace(h.Name(), content, s.filePerm)
}

func (s *FS) Save(h *Handle, content []byte) error {
	perm := s.filePerm
	if info, err := s.fs.Stat(h.Name()); err == nil {
		perm = info.Mode().Perm()
	}
	return s.replace(h.Name(), content, perm)
}

// replace writes content to a temp file in the same directory, then renames
// it over name. Readers see the old or the new content, never a mix.
func (s *FS) replace(name string, content []byte, perm fs.FileMode) error {
	tmpName := path.Join(path.Dir(name), fmt.Sprintf(".dalgen-%d-%d", os.Getpid(), tmpSeq.Add(1)))
	tmp, err := s.fs.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("%w: create temp file for %s: %w", ErrUnavailable, name, err)
	}

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("%w: write temp: %w", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("%w: close temp: %w", ErrUnavailable, err)
	}

	if err := s.fs.Rename(tmpName, name); err != nil {
		_ = s.fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("%w: rename temp to %s: %w", ErrUnavailable, name, err)
	}
	return nil
}
