package cli

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/koltyakov/snare/internal/artifacts"
	"github.com/koltyakov/snare/internal/audit"
	"github.com/koltyakov/snare/internal/config"
	ilog "github.com/koltyakov/snare/internal/log"
	"github.com/koltyakov/snare/internal/orch"
	"github.com/koltyakov/snare/internal/publisher"
	"github.com/koltyakov/snare/internal/rotator"
	"github.com/koltyakov/snare/internal/state"
	"github.com/koltyakov/snare/internal/store/sqlite"
)

func newTrail(site config.SiteConfig) *audit.Trail {
	return audit.NewTrail(site.Resolve(site.RotationLogPath), site.Resolve(site.CyclesCSVPath))
}

func newStateStore(site config.SiteConfig) *state.Store {
	return state.NewStore(site.Resolve(site.StatePath))
}

func newRotator(site config.SiteConfig, logger *slog.Logger) *rotator.Rotator {
	return rotator.New(site.Pages, site.Dir, newStateStore(site), newTrail(site), logger)
}

func newUpdater(site config.SiteConfig, logger *slog.Logger) *artifacts.Updater {
	return artifacts.NewUpdater(artifacts.Config{
		Dir:          site.Dir,
		BaseURL:      site.BaseURL,
		Pages:        site.Pages,
		SitemapFile:  site.SitemapFile,
		HubPages:     site.HubPages,
		SentinelDate: site.SentinelDate,
	}, logger)
}

func newOrchestrator(site config.SiteConfig, logger *slog.Logger) *orch.Orchestrator {
	return orch.New(orch.Config{
		Rotator:   newRotator(site, logger),
		Artifacts: newUpdater(site, logger),
		Trail:     newTrail(site),
		Publisher: publisher.NewGit(site.Dir, logger),
		LockPath:  site.Resolve(site.LockPath),
		AuditPaths: []string{
			site.CyclesCSVPath,
			site.RotationLogPath,
			site.StatePath,
		},
	}, logger)
}

// openIndex opens the activity index and applies migrations.
func openIndex(ctx context.Context, site config.SiteConfig) (*sqlite.Store, error) {
	store, err := sqlite.Open(site.Resolve(site.IndexPath))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// runLogger returns a logger that writes to stderr and, when the run
// log can be opened, to the durable automation log too. The returned
// closer flushes the file.
func runLogger(site config.SiteConfig) (*slog.Logger, func()) {
	path := site.Resolve(site.RunLogPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ilog.New(site.LogLevel), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return ilog.New(site.LogLevel), func() {}
	}
	logger := ilog.NewWriter(io.MultiWriter(os.Stderr, f), site.LogLevel)
	return logger, func() { _ = f.Close() }
}

// tailLines returns the last n lines of the file at path. A missing
// file yields no lines and no error.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
