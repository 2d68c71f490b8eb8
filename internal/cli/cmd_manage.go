package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/koltyakov/snare/internal/config"
	"github.com/koltyakov/snare/internal/scheduler"
	"github.com/koltyakov/snare/internal/store/sqlite"
)

func runManage(ctx context.Context, args []string) int {
	action := "status"
	if len(args) > 0 {
		switch args[0] {
		case "status", "install", "remove", "logs", "test":
			action = args[0]
			args = args[1:]
		default:
			fmt.Fprintln(os.Stderr, "unknown manage command:", args[0])
			return 2
		}
	}

	cfg, err := config.ParseManageFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "manage config error:", err)
		return 2
	}

	logger, closeLog := runLogger(cfg.Site)
	defer closeLog()
	sched := scheduler.NewCrontab(scheduler.DefaultTag, logger)

	switch action {
	case "status":
		index, err := openIndex(ctx, cfg.Site)
		if err != nil {
			logger.Warn("activity index unavailable", "error", err)
		} else {
			defer func() { _ = index.Close() }()
		}
		if err := manageStatus(ctx, os.Stdout, sched, cfg.Site, index); err != nil {
			fmt.Fprintln(os.Stderr, "manage status error:", err)
			return 1
		}
	case "install":
		if err := manageInstall(ctx, os.Stdout, sched, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "manage install error:", err)
			return 1
		}
	case "remove":
		if err := manageRemove(ctx, os.Stdout, sched); err != nil {
			fmt.Fprintln(os.Stderr, "manage remove error:", err)
			return 1
		}
	case "logs":
		if err := manageLogs(os.Stdout, cfg.Site, cfg.Lines); err != nil {
			fmt.Fprintln(os.Stderr, "manage logs error:", err)
			return 1
		}
	case "test":
		fmt.Println("Running test rotation cycle...")
		o := newOrchestrator(cfg.Site, logger)
		if err := o.RunOnce(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "test cycle failed:", err)
			return 1
		}
		fmt.Println("Test rotation cycle completed")
	}
	return 0
}

// manageStatus reports whether the automation is wired up: the cron
// entry, the run logs, the honeypot files themselves, and recent
// rotation activity from the index. A nil index skips the activity
// section.
func manageStatus(ctx context.Context, w io.Writer, sched scheduler.Scheduler, site config.SiteConfig, index *sqlite.Store) error {
	installed, entry, err := sched.Installed(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "Automated rotation status")
	if installed {
		fmt.Fprintln(w, "  Cron entry: installed")
		fmt.Fprintln(w, "   ", entry)
	} else {
		fmt.Fprintln(w, "  Cron entry: not installed")
	}

	logsOK := fileExists(site.Resolve(site.RunLogPath))
	fmt.Fprintf(w, "  Run log present: %v\n", logsOK)

	st := newStateStore(site).Load()
	pagesOK := true
	for _, page := range site.Pages {
		path := site.Resolve(st.Current(page))
		if !fileExists(path) {
			pagesOK = false
			fmt.Fprintf(w, "  Missing honeypot file: %s (page %s)\n", st.Current(page), page)
		}
	}
	fmt.Fprintf(w, "  Honeypot files present: %v\n", pagesOK)

	if index != nil {
		if err := newTrail(site).SyncIndex(ctx, index); err != nil {
			return err
		}
		total, err := index.RotationEventCount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  Rotations recorded: %d\n", total)
		recent, err := index.RecentRotationEvents(ctx, 3)
		if err != nil {
			return err
		}
		for _, ev := range recent {
			fmt.Fprintf(w, "    %s  %s -> %s\n", ev.Timestamp.Format(time.RFC3339), ev.OldURL, ev.NewURL)
		}
	}

	if installed && pagesOK {
		fmt.Fprintln(w, "System status: ACTIVE")
	} else {
		fmt.Fprintln(w, "System status: INACTIVE (run 'snare manage install' to activate)")
	}
	return nil
}

// manageInstall installs the cron entry running one cycle per schedule
// tick from the site directory, appending output to the run log.
func manageInstall(ctx context.Context, w io.Writer, sched scheduler.Scheduler, cfg config.ManageConfig) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	command := fmt.Sprintf("cd %s && %s cycle single >> %s 2>&1",
		cfg.Site.Dir, exe, cfg.Site.RunLogPath)
	entry := scheduler.Entry(cfg.Schedule, command, scheduler.DefaultTag)

	if err := sched.Install(ctx, entry); err != nil {
		return err
	}
	fmt.Fprintln(w, "Installed cron entry:")
	fmt.Fprintln(w, " ", entry)
	return nil
}

func manageRemove(ctx context.Context, w io.Writer, sched scheduler.Scheduler) error {
	if err := sched.Remove(ctx); err != nil {
		return err
	}
	fmt.Fprintln(w, "Cron entry removed")
	return nil
}

// manageLogs prints the tail of the automation and rotation logs.
func manageLogs(w io.Writer, site config.SiteConfig, n int) error {
	logs := []struct {
		name string
		path string
	}{
		{"Auto rotation log", site.Resolve(site.RunLogPath)},
		{"Rotation event log", site.Resolve(site.RotationLogPath)},
	}

	for _, l := range logs {
		lines, err := tailLines(l.path, n)
		if err != nil {
			return fmt.Errorf("read %s: %w", l.path, err)
		}
		fmt.Fprintf(w, "%s (last %d lines):\n", l.name, n)
		if len(lines) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		for _, line := range lines {
			fmt.Fprintln(w, " ", line)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
