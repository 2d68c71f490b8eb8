// Package scheduler manages the cron entry that drives unattended
// rotation cycles. Entries installed by this package carry a marker tag
// so install and remove never touch the operator's other jobs.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultTag marks crontab lines owned by this tool.
const DefaultTag = "# snare-rotation"

// Scheduler abstracts the cron surface so management commands can be
// tested without touching the real crontab.
type Scheduler interface {
	// Install replaces any previously installed entry with spec.
	Install(ctx context.Context, spec string) error
	// Remove drops the installed entry. Removing when nothing is
	// installed is not an error.
	Remove(ctx context.Context) error
	// List returns all current crontab lines.
	List(ctx context.Context) ([]string, error)
	// Installed reports whether a tagged entry exists and returns it.
	Installed(ctx context.Context) (bool, string, error)
}

// Entry builds a crontab line running command on the given schedule,
// tagged for later identification.
func Entry(schedule, command, tag string) string {
	return fmt.Sprintf("%s %s %s", schedule, command, tag)
}

// Crontab drives the system crontab via the crontab CLI.
type Crontab struct {
	tag string
	log *slog.Logger
}

func NewCrontab(tag string, logger *slog.Logger) *Crontab {
	if tag == "" {
		tag = DefaultTag
	}
	return &Crontab{tag: tag, log: logger}
}

func (c *Crontab) Install(ctx context.Context, spec string) error {
	lines, err := c.List(ctx)
	if err != nil {
		return err
	}
	lines = withoutTagged(lines, c.tag)
	lines = append(lines, spec)
	if err := c.write(ctx, lines); err != nil {
		return fmt.Errorf("install cron entry: %w", err)
	}
	c.log.Info("cron entry installed", "entry", spec)
	return nil
}

func (c *Crontab) Remove(ctx context.Context) error {
	lines, err := c.List(ctx)
	if err != nil {
		return err
	}
	kept := withoutTagged(lines, c.tag)
	if len(kept) == len(lines) {
		c.log.Info("no cron entry to remove")
		return nil
	}
	if err := c.write(ctx, kept); err != nil {
		return fmt.Errorf("remove cron entry: %w", err)
	}
	c.log.Info("cron entry removed")
	return nil
}

func (c *Crontab) List(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		// An empty crontab is reported as an error by most cron
		// implementations.
		if strings.Contains(errOut.String(), "no crontab") {
			return nil, nil
		}
		return nil, fmt.Errorf("crontab -l: %v: %s", err, strings.TrimSpace(errOut.String()))
	}
	return splitLines(out.String()), nil
}

func (c *Crontab) Installed(ctx context.Context) (bool, string, error) {
	lines, err := c.List(ctx)
	if err != nil {
		return false, "", err
	}
	entry := taggedLine(lines, c.tag)
	return entry != "", entry, nil
}

func (c *Crontab) write(ctx context.Context, lines []string) error {
	var in strings.Builder
	for _, line := range lines {
		in.WriteString(line)
		in.WriteByte('\n')
	}
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = strings.NewReader(in.String())
	var errOut bytes.Buffer
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("crontab -: %v: %s", err, strings.TrimSpace(errOut.String()))
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// withoutTagged filters out lines carrying the marker tag.
func withoutTagged(lines []string, tag string) []string {
	var kept []string
	for _, line := range lines {
		if strings.Contains(line, tag) {
			continue
		}
		kept = append(kept, line)
	}
	return kept
}

// taggedLine returns the first line carrying the marker tag.
func taggedLine(lines []string, tag string) string {
	for _, line := range lines {
		if strings.Contains(line, tag) {
			return line
		}
	}
	return ""
}
