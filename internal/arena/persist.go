// persist.go provides the file-backed arena variant.  The pool is a
// regular file of exactly capacity bytes, mapped shared (writes reach
// the backing store on Sync) or private (copy-on-write, Sync is a
// no-op).  Only the raw pool lives in the file; the bump offset and
// epoch must be persisted through a MetaStore because reopening the
// mapping cannot recover them.
//
// © 2025 seraph authors. MIT License.

package arena

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/seraphos/substrate/internal/absent"
)

type backing struct {
	mapped []byte
	file   *os.File
	path   string
	shared bool
}

// NewPersistent creates or opens a file-backed arena.  The file is
// grown to exactly capacity bytes; existing content is preserved and
// visible through the pool.
func NewPersistent(path string, capacity, alignment uint64, flags Flags, shared bool, log *zap.Logger) (*Arena, error) {
	if capacity == 0 || absent.IsU64(capacity) {
		return nil, errors.New("arena: capacity must be nonzero and non-absent")
	}
	alignment, ok := normalizeAlign(alignment)
	if !ok {
		return nil, errors.New("arena: alignment must be a power of two")
	}
	if log == nil {
		log = zap.NewNop()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "arena: open backing file")
	}
	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "arena: size backing file")
	}

	mapFlags := unix.MAP_SHARED
	if !shared {
		mapFlags = unix.MAP_PRIVATE
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, int(capacity),
		unix.PROT_READ|unix.PROT_WRITE, mapFlags)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "arena: mmap backing file")
	}

	a := &Arena{
		mem:        mapped,
		capacity:   capacity,
		alignment:  alignment,
		generation: 1,
		flags:      flags,
		backing: backing{
			mapped: mapped,
			file:   f,
			path:   path,
			shared: shared,
		},
		log: log,
	}
	log.Debug("arena mapped",
		zap.String("path", path),
		zap.Uint64("capacity", capacity),
		zap.Bool("shared", shared))
	return a, nil
}

// Persistent reports whether the arena has a file backing.
func (a *Arena) Persistent() bool { return a != nil && a.backing.file != nil }

// Path returns the backing file path, empty for anonymous arenas.
func (a *Arena) Path() string {
	if a == nil {
		return ""
	}
	return a.backing.path
}

// Sync flushes mapped pages to the backing store.  Private mappings and
// anonymous arenas sync trivially.
func (a *Arena) Sync() error {
	if a == nil || a.backing.mapped == nil || !a.backing.shared {
		return nil
	}
	if err := unix.Msync(a.backing.mapped, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "arena: msync")
	}
	return nil
}

// Destroy unmaps the pool and closes the file handle.  The backing file
// itself is left in place.  Anonymous arenas release their pool to the
// collector.
func (a *Arena) Destroy() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.mem = nil
	a.used = 0
	if a.backing.mapped == nil {
		return nil
	}
	mapped := a.backing.mapped
	f := a.backing.file
	a.backing = backing{}
	if err := unix.Munmap(mapped); err != nil {
		f.Close()
		return errors.Wrap(err, "arena: munmap")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "arena: close backing file")
	}
	return nil
}
