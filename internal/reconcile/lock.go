package reconcile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"eventsync/internal/config"
)

// ErrLocked is returned when another process holds the dataset lock.
var ErrLocked = errors.New("dataset is locked by another eventsync process")

// Lock is an exclusive, process-wide claim on one dataset.
type Lock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the dataset lock without waiting.
func AcquireLock(cfg *config.Config) (*Lock, error) {
	path := cfg.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
