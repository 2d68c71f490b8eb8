// Package lockfile provides a pid-based single-instance guard. Two
// concurrent cycle runs would race on the state file and the git index,
// so the orchestrator takes this lock before doing anything.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/koltyakov/snare/internal/domain"
)

// Lock is a held lock file. Release it when the run finishes.
type Lock struct {
	path string
}

// Acquire takes the lock at path, writing the current pid into it. If
// the file exists and its pid belongs to a live process, Acquire
// returns [domain.ErrAlreadyRunning]. A lock left behind by a dead
// process is reclaimed.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}

		pid, rerr := readPID(path)
		if rerr == nil && processAlive(pid) {
			return nil, fmt.Errorf("pid %d holds %s: %w", pid, path, domain.ErrAlreadyRunning)
		}
		// Unreadable or stale: reclaim and retry once.
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, fmt.Errorf("reclaim stale lock: %w", rmErr)
		}
	}
	return nil, fmt.Errorf("acquire %s: %w", path, domain.ErrAlreadyRunning)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Path reports where the lock file lives.
func (l *Lock) Path() string { return l.path }

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed lock content %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// processAlive probes the pid with signal 0.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
