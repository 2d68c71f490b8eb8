// Package rotator renames honeypot page files to fresh random names and
// keeps the rotation state in sync with what is on disk.
package rotator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/koltyakov/snare/internal/domain"
	"github.com/koltyakov/snare/internal/state"
)

// EventLog receives one record per performed rename. Implemented by
// [audit.Trail].
type EventLog interface {
	AppendRotation(ev domain.RotationEvent) (domain.RotationEvent, error)
}

// Rotator performs rotation passes over a fixed set of logical pages
// inside a single site directory.
type Rotator struct {
	pages  []string
	dir    string
	store  *state.Store
	events EventLog
	log    *slog.Logger
}

// New creates a rotator for the given canonical page names. dir is the
// site directory holding the honeypot files.
func New(pages []string, dir string, store *state.Store, events EventLog, logger *slog.Logger) *Rotator {
	return &Rotator{
		pages:  pages,
		dir:    dir,
		store:  store,
		events: events,
		log:    logger,
	}
}

// Rotate performs one full rotation pass: every page whose backing file
// exists is renamed to a newly generated unique filename, the rename is
// recorded in the rotation event log, and the updated state is persisted
// once at the end of the pass.
//
// Per-page failures (missing file, failed rename) are logged and skipped;
// they never abort the pass. The returned slice lists the renames that
// actually happened.
//
// Cancellation stops the pass before the next page, but the state for
// renames already performed is still persisted: a rename without its
// matching state entry would orphan the page.
func (r *Rotator) Rotate(ctx context.Context) ([]domain.Rotation, error) {
	st := r.store.Load()

	var rotations []domain.Rotation
	var ctxErr error
	for _, page := range r.pages {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}

		current := st.Current(page)
		currentPath := filepath.Join(r.dir, current)
		if _, err := os.Stat(currentPath); err != nil {
			r.log.Warn("honeypot file missing, skipping", "page", page, "file", current)
			continue
		}

		newName, err := r.generateFilename(page)
		if err != nil {
			r.log.Error("filename generation failed", "page", page, "error", err)
			continue
		}

		if err := os.Rename(currentPath, filepath.Join(r.dir, newName)); err != nil {
			// The file never moved, so the state entry stays on the
			// pre-rotation name.
			r.log.Error("rename failed", "page", page, "from", current, "to", newName, "error", err)
			continue
		}

		st.CurrentURLs[page] = newName
		rotations = append(rotations, domain.Rotation{Page: page, OldURL: current, NewURL: newName})
		r.log.Info("rotated honeypot page", "page", page, "from", current, "to", newName)

		if _, err := r.events.AppendRotation(domain.RotationEvent{
			OldURL: current,
			NewURL: newName,
		}); err != nil {
			r.log.Error("rotation event append failed", "page", page, "error", err)
		}
	}

	// One durable write per pass, even when the pass was cut short:
	// every rename above must be reflected in the persisted state.
	if err := r.store.Save(st); err != nil {
		return rotations, fmt.Errorf("persist rotation state: %w", err)
	}
	return rotations, ctxErr
}

// State returns the currently persisted page mapping.
func (r *Rotator) State() domain.State {
	return r.store.Load()
}

const suffixLength = 6

// generateFilename produces "<prefix>-<suffix>.html" for the page, where
// prefix is the canonical name without its extension and suffix is 6
// random lowercase-alphanumeric characters. Regenerates until the name
// does not collide with any existing file in the site directory.
func (r *Rotator) generateFilename(page string) (string, error) {
	prefix := strings.TrimSuffix(page, ".html")
	const maxAttempts = 32
	for i := 0; i < maxAttempts; i++ {
		suffix, err := randomSuffix(suffixLength)
		if err != nil {
			return "", err
		}
		name := fmt.Sprintf("%s-%s.html", prefix, suffix)
		if _, err := os.Stat(filepath.Join(r.dir, name)); os.IsNotExist(err) {
			return name, nil
		}
	}
	return "", fmt.Errorf("no unique filename for %s after %d attempts", page, maxAttempts)
}
