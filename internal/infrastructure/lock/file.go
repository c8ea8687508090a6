package lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"PersonaPipeline/internal/ports"
)

// FileGuard holds run tokens as advisory file locks, one file per persona,
// so a CLI run and a serving daemon on the same host exclude each other.
type FileGuard struct {
	dir    string
	logger *slog.Logger
}

var _ ports.RunGuard = (*FileGuard)(nil)

// NewFileGuard keeps lock files under dir, creating it if needed.
func NewFileGuard(dir string, logger *slog.Logger) (*FileGuard, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileGuard{dir: dir, logger: logger}, nil
}

// Path is the lock file used for a persona.
func (g *FileGuard) Path(personaID int64) string {
	return filepath.Join(g.dir, fmt.Sprintf("persona-%d.lock", personaID))
}

// Acquire takes the persona's lock without blocking.
func (g *FileGuard) Acquire(_ context.Context, personaID int64) (func(), error) {
	lock := flock.New(g.Path(personaID))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock persona %d: %w", personaID, err)
	}
	if !ok {
		return nil, ports.ErrTokenHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := lock.Unlock(); err != nil {
				g.logger.Warn("release run lock", "persona_id", personaID, "error", err)
			}
		})
	}, nil
}
