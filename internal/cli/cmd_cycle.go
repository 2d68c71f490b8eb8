package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/koltyakov/snare/internal/config"
	"github.com/koltyakov/snare/internal/domain"
)

func runCycle(ctx context.Context, args []string) int {
	mode := "single"
	if len(args) > 0 {
		switch args[0] {
		case "single", "continuous":
			mode = args[0]
			args = args[1:]
		}
	}

	cfg, err := config.ParseCycleFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "cycle config error:", err)
		return 2
	}

	logger, closeLog := runLogger(cfg.Site)
	defer closeLog()

	o := newOrchestrator(cfg.Site, logger)

	if mode == "continuous" {
		if err := o.RunForever(ctx, cfg.Interval); err != nil {
			fmt.Fprintln(os.Stderr, "cycle error:", err)
			return 1
		}
		return 0
	}

	if err := o.RunOnce(ctx); err != nil {
		if errors.Is(err, domain.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "another rotation is already running:", err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "cycle error:", err)
		return 1
	}
	return 0
}
