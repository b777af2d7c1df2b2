package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iot-ota/edge-agent/internal/config"
	"github.com/iot-ota/edge-agent/internal/domain/update"
)

// Store defines persistence operations for the installed-version manifest.
type Store interface {
	Load(ctx context.Context) (update.Manifest, error)
	Commit(ctx context.Context, manifest update.Manifest) error
}

// ErrNotFound is returned when no version has been installed yet.
var ErrNotFound = errors.New("installed version not recorded")

// FileStore persists the installed-version manifest to a file on disk.
// Commit publishes atomically: the manifest is written to a temporary
// file in the same directory and renamed over the previous one, so a
// crash mid-write can never corrupt the prior valid value.
type FileStore struct {
	// path is the filesystem location of the manifest file.
	path string
	// mu gives the writer exclusive access for the duration of a commit.
	mu sync.Mutex
}

// NewFileStore creates a store that reads/writes the manifest at the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: filepath.Clean(path),
	}
}

// Load reads the last successfully installed manifest from disk.
func (s *FileStore) Load(_ context.Context) (update.Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return update.Manifest{}, ErrNotFound
		}

		return update.Manifest{}, &update.StateError{Op: "load", Err: err}
	}

	manifest, err := update.ParseManifest(contents)
	if err != nil {
		return update.Manifest{}, &update.StateError{Op: "load", Err: err}
	}

	return manifest, nil
}

// Commit atomically replaces the recorded manifest. The previous value
// stays readable to any concurrent reader until the rename lands; a
// failure at any point leaves the prior file untouched.
func (s *FileStore) Commit(_ context.Context, manifest update.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := manifest.Serialize()
	if err != nil {
		return &update.StateError{Op: "commit", Err: err}
	}

	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, ".version-*.yaml")
	if err != nil {
		return &update.StateError{Op: "commit", Err: fmt.Errorf("create temp file: %w", err)}
	}

	tmpName := tmp.Name()

	if err := s.writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmpName)

		return &update.StateError{Op: "commit", Err: err}
	}

	if err := os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		_ = os.Remove(tmpName)

		return &update.StateError{Op: "commit", Err: err}
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)

		return &update.StateError{Op: "commit", Err: fmt.Errorf("publish state file: %w", err)}
	}

	return nil
}

// writeAndSync writes data to the open temp file and flushes it to disk
// before close, so the rename never publishes a partially written file.
func (s *FileStore) writeAndSync(file *os.File, data []byte) error {
	if _, err := file.Write(data); err != nil {
		_ = file.Close()

		return fmt.Errorf("write temp file: %w", err)
	}

	if err := file.Sync(); err != nil {
		_ = file.Close()

		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return nil
}
