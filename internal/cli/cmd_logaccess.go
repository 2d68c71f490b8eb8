package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/koltyakov/snare/internal/access"
	"github.com/koltyakov/snare/internal/config"
)

func runLogAccess(args []string) int {
	cfg, err := config.ParseLogAccessFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log-access config error:", err)
		return 2
	}

	logger := access.NewLogger(cfg.Site.Resolve(cfg.Site.AccessLogPath))
	rec, err := logger.Log(cfg.URL, cfg.UserAgent, cfg.IPAddress)
	if err != nil {
		fmt.Fprintln(os.Stderr, "log-access error:", err)
		return 1
	}
	fmt.Printf("Logged access to %s from %s at %s\n", rec.URL, rec.IPAddress, rec.Timestamp.Format(time.RFC3339))
	return 0
}
