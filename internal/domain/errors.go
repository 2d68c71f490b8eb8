package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for well-known failure conditions that cross package
// boundaries.  Callers should use [errors.Is] to match these.
var (
	// ErrAlreadyRunning indicates another rotation process holds the
	// instance lock for the working directory.
	ErrAlreadyRunning = errors.New("another rotation process is already running")

	// ErrPageMissing means a page's backing file does not exist on disk.
	// Recoverable: the page is skipped for the current pass.
	ErrPageMissing = errors.New("honeypot page file missing")

	// ErrNoAccessLog means analysis was requested but no access log
	// exists yet.
	ErrNoAccessLog = errors.New("no access log found")
)

// CycleError wraps an underlying error with the orchestrator step that
// failed, so callers and logs can tell a rotate failure from a publish
// failure.
type CycleError struct {
	Step string
	Err  error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle step %s: %v", e.Step, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
