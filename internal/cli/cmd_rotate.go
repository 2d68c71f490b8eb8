package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/koltyakov/snare/internal/config"
	"github.com/koltyakov/snare/internal/lockfile"
)

func runRotate(ctx context.Context, args []string) int {
	mode := "continuous"
	if len(args) > 0 {
		switch args[0] {
		case "manual", "status", "continuous":
			mode = args[0]
			args = args[1:]
		}
	}

	cfg, err := config.ParseRotateFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rotate config error:", err)
		return 2
	}

	switch mode {
	case "status":
		return runRotateStatus(cfg)
	case "manual":
		return runRotateManual(ctx, cfg)
	default:
		return runRotateContinuous(ctx, cfg)
	}
}

func runRotateManual(ctx context.Context, cfg config.RotateConfig) int {
	logger, closeLog := runLogger(cfg.Site)
	defer closeLog()

	lock, err := lockfile.Acquire(cfg.Site.Resolve(cfg.Site.LockPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "rotation refused:", err)
		return 1
	}
	defer func() { _ = lock.Release() }()

	rot := newRotator(cfg.Site, logger)
	rotations, err := rot.Rotate(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rotation error:", err)
		return 1
	}
	for _, r := range rotations {
		fmt.Printf("%s: %s -> %s\n", r.Page, r.OldURL, r.NewURL)
	}
	logger.Info("rotation pass finished", "rotated", len(rotations))
	return 0
}

func runRotateStatus(cfg config.RotateConfig) int {
	st := newStateStore(cfg.Site).Load()

	fmt.Println("Current honeypot URL mappings:")
	pages := append([]string(nil), cfg.Site.Pages...)
	sort.Strings(pages)
	for _, page := range pages {
		current := st.Current(page)
		marker := ""
		if current == page {
			marker = " (never rotated)"
		}
		fmt.Printf("  %s -> %s%s\n", page, current, marker)
	}
	if !st.LastUpdated.IsZero() {
		fmt.Println("Last updated:", st.LastUpdated.Format(time.RFC3339))
	}
	return 0
}

func runRotateContinuous(ctx context.Context, cfg config.RotateConfig) int {
	logger, closeLog := runLogger(cfg.Site)
	defer closeLog()

	// Held for the whole loop: a cron-driven cycle must not race a
	// long-running rotate against the same state file.
	lock, err := lockfile.Acquire(cfg.Site.Resolve(cfg.Site.LockPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "rotation refused:", err)
		return 1
	}
	defer func() { _ = lock.Release() }()

	rot := newRotator(cfg.Site, logger)
	logger.Info("starting continuous rotation", "interval", cfg.Interval)
	for {
		if _, err := rot.Rotate(ctx); err != nil {
			if ctx.Err() != nil {
				return 0
			}
			logger.Error("rotation pass failed", "error", err)
		}

		select {
		case <-ctx.Done():
			logger.Info("rotation stopped")
			return 0
		case <-time.After(cfg.Interval):
		}
	}
}
