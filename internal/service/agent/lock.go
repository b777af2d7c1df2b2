package agent

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/iot-ota/edge-agent/internal/config"
	"github.com/iot-ota/edge-agent/internal/logger"
)

// ErrLockBusy is returned when another update cycle already holds the
// host-scoped lock. The caller must exit as a no-op, not block.
var ErrLockBusy = errors.New("another update cycle is already running")

// agentExecutablePrefix identifies our own process when checking
// whether a lock owner is still alive.
const agentExecutablePrefix = "ota-agent"

// CycleLock is the host-scoped advisory lock serializing update cycles,
// so a manual trigger and the scheduled one cannot race. The marker
// file records the owner PID; a marker whose owner is gone is stale and
// reclaimed, so a crashed cycle never wedges the device.
type CycleLock struct {
	// path is the marker file location.
	path string
	// ownerPrefix is the executable name prefix counted as an agent
	// process when probing the recorded owner.
	ownerPrefix string
}

// NewCycleLock returns a lock backed by the marker file at path.
func NewCycleLock(path string) *CycleLock {
	return &CycleLock{
		path:        filepath.Clean(path),
		ownerPrefix: agentExecutablePrefix,
	}
}

// Acquire takes the lock or fails fast with ErrLockBusy.
func (l *CycleLock) Acquire(ctx context.Context) error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("create lock marker: %w", err)
	}

	if l.ownerAlive(ctx) {
		return ErrLockBusy
	}

	logger.Warn(ctx, "Stale cycle lock found, reclaiming it")

	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale lock marker: %w", err)
	}

	if err := l.tryCreate(); err != nil {
		if errors.Is(err, fs.ErrExist) {
			// Somebody else won the reclaim race.
			return ErrLockBusy
		}

		return fmt.Errorf("create lock marker: %w", err)
	}

	return nil
}

// tryCreate atomically creates the marker with this process as owner.
func (l *CycleLock) tryCreate() error {
	marker, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, config.DefaultFilePermissions)
	if err != nil {
		return err
	}

	_, writeErr := marker.WriteString(strconv.Itoa(os.Getpid()))

	if err := marker.Close(); writeErr == nil {
		writeErr = err
	}

	if writeErr != nil {
		_ = os.Remove(l.path)

		return writeErr
	}

	return nil
}

// ownerAlive reports whether the PID recorded in the marker still maps
// to a running agent process. An unreadable or garbled marker counts as
// stale: the owner can no longer be identified, so the crash-recovery
// path wins over waiting forever.
func (l *CycleLock) ownerAlive(ctx context.Context) bool {
	contents, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil {
		logger.WarnKV(ctx, "Cycle lock marker is garbled", "marker", l.path)

		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return false
	}

	return strings.HasPrefix(process.Executable(), l.ownerPrefix)
}

// Release drops the lock. Safe to call when the lock was never taken.
func (l *CycleLock) Release() {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnf(context.Background(), "Unable to remove cycle lock marker: %v", err)
	}
}
