package cli

import (
	"fmt"
	"os/exec"
	"strings"
)

func printUsage() {
	fmt.Println(`snare - honeypot URL rotation for static sites

Rotates honeypot page URLs on a schedule so that automated crawlers
following stale links give themselves away, and keeps the sitemap, hub
pages, audit trail, and the published git state consistent.

Usage:
  snare rotate                        Rotate continuously (default every 5m)
  snare rotate manual                 Run one rotation pass
  snare rotate status                 Print current URL mappings
  snare cycle single                  Run one full cycle (rotate + publish)
  snare cycle continuous              Run cycles forever (default every 30m)
  snare manage status                 Show automation status
  snare manage install                Install the cron entry
  snare manage remove                 Remove the cron entry
  snare manage logs [-n 20]           Show recent automation logs
  snare manage test                   Run a test cycle
  snare monitor                       Print access analysis
  snare monitor analyze               Analyze and write the snapshot
  snare monitor tail [-listen :8099]  Follow accesses in real time
  snare log-access -url U -agent A -ip IP
                                      Append one access record
  snare version                       Print version
  snare help                          Show this help

Common flags (every command):
  -dir DIR          Site directory, the git working tree root (default .)
  -base-url URL     Public base URL used in the sitemap
  -pages LIST       Comma-separated honeypot page filenames
  -hub-pages LIST   Comma-separated hub page filenames
  -log-level LEVEL  debug|info|warn|error (default info)

Environment Variables:
  SNARE_SITE_DIR        Site directory
  SNARE_BASE_URL        Public base URL (default https://ai-crawler.org)
  SNARE_PAGES           Honeypot page filenames
  SNARE_HUB_PAGES       Hub page filenames
  SNARE_SCHEDULE        Cron schedule for automated cycles (default */30 * * * *)
  SNARE_INDEX_PATH      Activity index database path (default logs/activity.db)
  SNARE_FEED_LISTEN     Websocket feed listen address for monitor tail
  SNARE_LOG_LEVEL       Log level: debug|info|warn|error (default info)`)
}

// Version is set at build time via -ldflags.
var Version = "dev"

func init() {
	if Version == "dev" {
		if desc, err := exec.Command("git", "describe", "--tags", "--always").Output(); err == nil {
			if v := strings.TrimSpace(string(desc)); v != "" {
				Version = v + "-dev"
			}
		}
	}
	if Version != "dev" && !strings.HasPrefix(Version, "v") {
		Version = "v" + Version
	}
}

func printVersion() {
	fmt.Println("snare", Version)
}
