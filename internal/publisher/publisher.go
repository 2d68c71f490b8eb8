// Package publisher pushes working-tree changes to the site's git
// remote. GitHub Pages redeploys on push, so a publish is what makes a
// rotation visible to visitors.
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Publisher abstracts the publish pipeline so cycle logic can be tested
// without a git repository.
type Publisher interface {
	// Add stages the given paths, relative to the repository root.
	Add(ctx context.Context, paths ...string) error
	// Commit records staged changes. A clean tree is not an error.
	Commit(ctx context.Context, message string) error
	// Push publishes committed changes to the remote.
	Push(ctx context.Context) error
	// Revision reports the short hash of the current HEAD.
	Revision(ctx context.Context) (string, error)
}

// GitPublisher shells out to the git CLI rooted at a repository
// directory.
type GitPublisher struct {
	dir string
	log *slog.Logger
}

func NewGit(dir string, logger *slog.Logger) *GitPublisher {
	return &GitPublisher{dir: dir, log: logger}
}

func (g *GitPublisher) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.git(ctx, args...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

func (g *GitPublisher) Commit(ctx context.Context, message string) error {
	staged, err := g.hasStagedChanges(ctx)
	if err != nil {
		return err
	}
	if !staged {
		g.log.Debug("nothing staged, skipping commit")
		return nil
	}
	if _, err := g.git(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

func (g *GitPublisher) Push(ctx context.Context) error {
	if _, err := g.git(ctx, "push"); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

func (g *GitPublisher) Revision(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// hasStagedChanges reports whether the index differs from HEAD.
func (g *GitPublisher) hasStagedChanges(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--cached", "--quiet")
	cmd.Dir = g.dir
	err := cmd.Run()
	if err == nil {
		return false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git diff --cached: %w", err)
}

func (g *GitPublisher) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%v: %s", err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}
