// Package orch sequences a full rotation cycle: rotate the trap pages,
// publish, refresh dependent artifacts, record the audit trail, publish
// again. The orchestrator owns ordering and failure policy; the real
// work lives in the injected collaborators.
package orch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/koltyakov/snare/internal/artifacts"
	"github.com/koltyakov/snare/internal/audit"
	"github.com/koltyakov/snare/internal/domain"
	"github.com/koltyakov/snare/internal/lockfile"
	"github.com/koltyakov/snare/internal/publisher"
	"github.com/koltyakov/snare/internal/rotator"
)

// retryPause is how long RunForever waits after an unexpected failure
// before trying again.
const retryPause = time.Minute

// Config wires an orchestrator.
type Config struct {
	Rotator   *rotator.Rotator
	Artifacts *artifacts.Updater
	Trail     *audit.Trail
	Publisher publisher.Publisher
	// LockPath guards against concurrent cycles. Empty disables the
	// guard, which only tests should do.
	LockPath string
	// AuditPaths are the repo-relative paths staged in the second
	// publish, typically the cycle CSV and rotation log.
	AuditPaths []string
	// Now is the clock for commit messages and CSV rows. Defaults to
	// time.Now.
	Now func() time.Time
}

type Orchestrator struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Orchestrator{cfg: cfg, log: logger}
}

// RunOnce performs one complete cycle. A failure before the first push
// aborts the cycle with nothing published. A failure in the second
// publish aborts too, but the rotation itself already stands. Artifact
// updates and audit recording are best-effort.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if o.cfg.LockPath != "" {
		lock, err := lockfile.Acquire(o.cfg.LockPath)
		if err != nil {
			return fmt.Errorf("cycle refused: %w", err)
		}
		defer func() { _ = lock.Release() }()
	}

	o.log.Info("starting rotation cycle")
	now := o.cfg.Now()

	rotations, err := o.cfg.Rotator.Rotate(ctx)
	if err != nil {
		return &domain.CycleError{Step: "rotate", Err: err}
	}
	if len(rotations) == 0 {
		o.log.Warn("no pages rotated this cycle")
	}

	if err := o.publish(ctx, fmt.Sprintf("Auto-rotate honeypot URLs - %s", now.Format("2006-01-02 15:04:05")), "."); err != nil {
		return err
	}

	st := o.cfg.Rotator.State()
	o.cfg.Artifacts.Apply(st, rotations)

	revision, err := o.cfg.Publisher.Revision(ctx)
	if err != nil {
		o.log.Error("could not resolve revision for cycle record", "error", err)
		revision = "unknown"
	}
	if err := o.cfg.Trail.RecordCycle(now, revision, audit.ChangesFor(rotations)); err != nil {
		o.log.Error("cycle record failed", "error", err)
	}

	paths := o.cfg.AuditPaths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	msg := fmt.Sprintf("Update commit logs with rotation - %s", now.Format("2006-01-02 15:04:05"))
	if err := o.publish(ctx, msg, paths...); err != nil {
		return err
	}

	o.log.Info("rotation cycle completed", "rotated", len(rotations), "revision", revision)
	return nil
}

// RunForever repeats cycles on the given interval until ctx is
// cancelled. Cycle failures are logged and retried on the next tick;
// unexpected errors pause briefly before the retry.
func (o *Orchestrator) RunForever(ctx context.Context, interval time.Duration) error {
	o.log.Info("starting continuous rotation", "interval", interval)
	for {
		wait := interval
		if err := o.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var cycleErr *domain.CycleError
			if errors.As(err, &cycleErr) {
				o.log.Error("rotation cycle failed, will retry on next tick", "step", cycleErr.Step, "error", err)
			} else {
				o.log.Error("unexpected cycle error", "error", err)
				wait = retryPause
			}
		} else {
			o.log.Info("next rotation scheduled", "in", wait)
		}

		select {
		case <-ctx.Done():
			o.log.Info("continuous rotation stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// publish stages paths, commits with message, and pushes. The failing
// step is named in the returned error.
func (o *Orchestrator) publish(ctx context.Context, message string, paths ...string) error {
	if err := o.cfg.Publisher.Add(ctx, paths...); err != nil {
		return &domain.CycleError{Step: "add", Err: err}
	}
	if err := o.cfg.Publisher.Commit(ctx, message); err != nil {
		return &domain.CycleError{Step: "commit", Err: err}
	}
	if err := o.cfg.Publisher.Push(ctx); err != nil {
		return &domain.CycleError{Step: "push", Err: err}
	}
	return nil
}
