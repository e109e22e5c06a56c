package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oar-cd/hound/domain"
	"golang.org/x/sys/unix"
)

// Lock is an advisory lock held for the duration of one project operation
type Lock struct {
	file *os.File
	path string
}

// Locker hands out per-project locks stored in a dedicated directory
type Locker struct {
	dir string
}

func NewLocker(dir string) *Locker {
	return &Locker{dir: dir}
}

// Acquire takes an exclusive, non-blocking lock on the named project.
// It fails with domain.ErrProjectLocked if another process holds it.
func (l *Locker) Acquire(name string) (*Lock, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	path := filepath.Join(l.dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", domain.ErrProjectLocked, name)
		}
		return nil, fmt.Errorf("failed to lock project %s: %w", name, err)
	}

	return &Lock{file: f, path: path}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	defer func() { l.file = nil }()

	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return l.file.Close()
}
