package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SiteConfig describes the static site under management and where the
// tool keeps its working files. All paths are relative to Dir unless
// absolute.
type SiteConfig struct {
	Dir          string
	BaseURL      string
	Pages        []string
	HubPages     []string
	SitemapFile  string
	SentinelDate string

	StatePath       string
	RotationLogPath string
	AccessLogPath   string
	AnalysisPath    string
	CyclesCSVPath   string
	IndexPath       string
	LockPath        string
	RunLogPath      string

	LogLevel string
}

type RotateConfig struct {
	Site     SiteConfig
	Interval time.Duration
}

type CycleConfig struct {
	Site     SiteConfig
	Interval time.Duration
}

type ManageConfig struct {
	Site     SiteConfig
	Lines    int
	Schedule string
}

type MonitorConfig struct {
	Site         SiteConfig
	Listen       string
	PollInterval time.Duration
}

type LogAccessConfig struct {
	Site      SiteConfig
	URL       string
	UserAgent string
	IPAddress string
}

const defaultBaseURL = "https://ai-crawler.org"
const defaultPages = "a-6hp.html,a-7sm.html"
const defaultHubPages = "hp-1.html,hp-2.html"
const defaultSitemapFile = "sitemap.xml"
const defaultSentinelDate = "2024-12-15"
const defaultStatePath = "logs/honeypot_url_history.json"
const defaultRotationLogPath = "logs/honeypot_rotations.log"
const defaultAccessLogPath = "logs/honeypot_access.log"
const defaultAnalysisPath = "logs/honeypot_analysis.json"
const defaultCyclesCSVPath = "logs/commit-logs.csv"
const defaultIndexPath = "logs/activity.db"
const defaultLockPath = "logs/rotation.lock"
const defaultRunLogPath = "logs/auto_rotation.log"
const defaultRotateInterval = 5 * time.Minute
const defaultCycleInterval = 30 * time.Minute
const defaultManageLines = 20
const defaultSchedule = "*/30 * * * *"

func ParseRotateFlags(args []string) (RotateConfig, error) {
	cfg := RotateConfig{Interval: defaultRotateInterval}

	fs := flag.NewFlagSet("rotate", flag.ContinueOnError)
	registerSiteFlags(fs, &cfg.Site)
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Delay between rotation passes")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Interval <= 0 {
		return cfg, errors.New("interval must be > 0")
	}
	if err := validateSite(&cfg.Site); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ParseCycleFlags(args []string) (CycleConfig, error) {
	cfg := CycleConfig{Interval: defaultCycleInterval}

	fs := flag.NewFlagSet("cycle", flag.ContinueOnError)
	registerSiteFlags(fs, &cfg.Site)
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Delay between rotation cycles")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Interval <= 0 {
		return cfg, errors.New("interval must be > 0")
	}
	if err := validateSite(&cfg.Site); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ParseManageFlags(args []string) (ManageConfig, error) {
	cfg := ManageConfig{
		Lines:    defaultManageLines,
		Schedule: envOrDefault("SNARE_SCHEDULE", defaultSchedule),
	}

	fs := flag.NewFlagSet("manage", flag.ContinueOnError)
	registerSiteFlags(fs, &cfg.Site)
	fs.IntVar(&cfg.Lines, "n", cfg.Lines, "Number of recent log lines to show")
	fs.StringVar(&cfg.Schedule, "schedule", cfg.Schedule, "Cron schedule for automated cycles")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Lines <= 0 {
		return cfg, errors.New("line count must be > 0")
	}
	if strings.TrimSpace(cfg.Schedule) == "" {
		return cfg, errors.New("missing -schedule or SNARE_SCHEDULE")
	}
	if err := validateSite(&cfg.Site); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ParseMonitorFlags(args []string) (MonitorConfig, error) {
	cfg := MonitorConfig{
		Listen:       envOrDefault("SNARE_FEED_LISTEN", ""),
		PollInterval: time.Second,
	}

	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	registerSiteFlags(fs, &cfg.Site)
	fs.StringVar(&cfg.Listen, "listen", cfg.Listen, "Websocket feed listen address (empty disables the feed)")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "Access log poll interval")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.PollInterval <= 0 {
		return cfg, errors.New("poll interval must be > 0")
	}
	if err := validateSite(&cfg.Site); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ParseLogAccessFlags(args []string) (LogAccessConfig, error) {
	var cfg LogAccessConfig

	fs := flag.NewFlagSet("log-access", flag.ContinueOnError)
	registerSiteFlags(fs, &cfg.Site)
	fs.StringVar(&cfg.URL, "url", "", "Accessed URL")
	fs.StringVar(&cfg.UserAgent, "agent", "", "Client user agent")
	fs.StringVar(&cfg.IPAddress, "ip", "", "Client IP address")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return cfg, errors.New("missing -url")
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return cfg, errors.New("missing -agent")
	}
	if strings.TrimSpace(cfg.IPAddress) == "" {
		return cfg, errors.New("missing -ip")
	}
	if err := validateSite(&cfg.Site); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// registerSiteFlags binds the shared site flags, seeding defaults from
// SNARE_* environment variables.
func registerSiteFlags(fs *flag.FlagSet, site *SiteConfig) {
	site.Dir = envOrDefault("SNARE_SITE_DIR", ".")
	site.BaseURL = envOrDefault("SNARE_BASE_URL", defaultBaseURL)
	site.SitemapFile = envOrDefault("SNARE_SITEMAP", defaultSitemapFile)
	site.SentinelDate = envOrDefault("SNARE_SENTINEL_DATE", defaultSentinelDate)
	site.StatePath = defaultStatePath
	site.RotationLogPath = defaultRotationLogPath
	site.AccessLogPath = defaultAccessLogPath
	site.AnalysisPath = defaultAnalysisPath
	site.CyclesCSVPath = defaultCyclesCSVPath
	site.IndexPath = envOrDefault("SNARE_INDEX_PATH", defaultIndexPath)
	site.LockPath = defaultLockPath
	site.RunLogPath = defaultRunLogPath
	site.LogLevel = envOrDefault("SNARE_LOG_LEVEL", "info")
	site.Pages = splitList(envOrDefault("SNARE_PAGES", defaultPages))
	site.HubPages = splitList(envOrDefault("SNARE_HUB_PAGES", defaultHubPages))

	fs.StringVar(&site.Dir, "dir", site.Dir, "Site directory (git working tree root)")
	fs.StringVar(&site.BaseURL, "base-url", site.BaseURL, "Public base URL used in the sitemap")
	fs.StringVar(&site.SitemapFile, "sitemap", site.SitemapFile, "Sitemap file, relative to the site directory")
	fs.StringVar(&site.LogLevel, "log-level", site.LogLevel, "Log level: debug|info|warn|error")
	fs.Func("pages", "Comma-separated honeypot page filenames", func(v string) error {
		site.Pages = splitList(v)
		return nil
	})
	fs.Func("hub-pages", "Comma-separated hub page filenames", func(v string) error {
		site.HubPages = splitList(v)
		return nil
	})
}

func validateSite(site *SiteConfig) error {
	site.BaseURL = strings.TrimSuffix(strings.TrimSpace(site.BaseURL), "/")
	if site.BaseURL == "" {
		return errors.New("missing -base-url or SNARE_BASE_URL")
	}
	if len(site.Pages) == 0 {
		return errors.New("missing -pages or SNARE_PAGES")
	}
	seen := make(map[string]struct{}, len(site.Pages))
	for _, page := range site.Pages {
		if !strings.HasSuffix(page, ".html") {
			return fmt.Errorf("page %q must be an .html filename", page)
		}
		if _, dup := seen[page]; dup {
			return fmt.Errorf("duplicate page %q", page)
		}
		seen[page] = struct{}{}
	}
	return nil
}

// Resolve joins a configured path with the site directory unless it is
// already absolute.
func (c SiteConfig) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
