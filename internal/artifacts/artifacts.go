// Package artifacts rewrites documents that reference honeypot pages by
// filename (the sitemap and the hub pages) so published links stay valid
// after a rotation. Updates are best-effort: a missing file or an
// unmatched pattern is logged and never aborts the caller's cycle.
package artifacts

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/koltyakov/snare/internal/domain"
)

// Updater applies the current rotation state to the site's dependent
// artifacts in place.
type Updater struct {
	dir          string   // site directory
	baseURL      string   // public base URL, e.g. https://ai-crawler.org
	pages        []string // canonical honeypot page names
	sitemapFile  string   // sitemap filename inside dir
	hubPages     []string // hub page filenames inside dir
	sentinelDate string   // lastmod placeholder to refresh, e.g. 2024-12-15
	log          *slog.Logger
}

// Config configures an [Updater].
type Config struct {
	Dir          string
	BaseURL      string
	Pages        []string
	SitemapFile  string
	HubPages     []string
	SentinelDate string
}

// NewUpdater creates an updater for the given site layout.
func NewUpdater(cfg Config, logger *slog.Logger) *Updater {
	return &Updater{
		dir:          cfg.Dir,
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		pages:        cfg.Pages,
		sitemapFile:  cfg.SitemapFile,
		hubPages:     cfg.HubPages,
		sentinelDate: cfg.SentinelDate,
		log:          logger,
	}
}

// Apply rewrites the sitemap from the full current state and the hub
// pages from the renames performed in this pass. Running Apply twice
// with no rotation in between leaves every document byte-identical.
func (u *Updater) Apply(st domain.State, rotations []domain.Rotation) {
	u.applySitemap(st)
	u.applyHubPages(rotations)
}

func (u *Updater) applySitemap(st domain.State) {
	if u.sitemapFile == "" {
		return
	}
	path := filepath.Join(u.dir, u.sitemapFile)
	doc, err := os.ReadFile(path)
	if err != nil {
		u.log.Warn("sitemap not found, skipping", "file", u.sitemapFile, "error", err)
		return
	}

	updated := ApplySitemap(string(doc), u.baseURL, u.pages, st)
	updated = RefreshLastMod(updated, u.sentinelDate, time.Now().Format("2006-01-02"))

	if updated == string(doc) {
		return
	}
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		u.log.Error("sitemap update failed", "file", u.sitemapFile, "error", err)
		return
	}
	u.log.Info("updated sitemap", "file", u.sitemapFile)
}

func (u *Updater) applyHubPages(rotations []domain.Rotation) {
	if len(rotations) == 0 {
		return
	}
	mapping := make(map[string]string, len(rotations))
	for _, r := range rotations {
		mapping[r.OldURL] = r.NewURL
	}

	for _, hub := range u.hubPages {
		path := filepath.Join(u.dir, hub)
		doc, err := os.ReadFile(path)
		if err != nil {
			u.log.Warn("hub page not found, skipping", "file", hub, "error", err)
			continue
		}
		updated := ApplyFilenameMapping(string(doc), mapping)
		if updated == string(doc) {
			continue
		}
		if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
			u.log.Error("hub page update failed", "file", hub, "error", err)
			continue
		}
		u.log.Info("updated hub page", "file", hub)
	}
}

// ApplyFilenameMapping replaces every literal occurrence of an old
// filename with its new filename. Pure text substitution so it can be
// tested against document fixtures directly.
func ApplyFilenameMapping(doc string, oldToNew map[string]string) string {
	for old, updated := range oldToNew {
		if old == "" || old == updated {
			continue
		}
		doc = strings.ReplaceAll(doc, old, updated)
	}
	return doc
}

// ApplySitemap replaces any URL of the form <base>/<prefix>-*.html with
// the page's current filename. Matching anchors on the stable prefix,
// so the previous rotation's suffix does not need to be known.
func ApplySitemap(doc, baseURL string, pages []string, st domain.State) string {
	for _, page := range pages {
		current := st.Current(page)
		if current == page {
			continue // never rotated, nothing stale to replace
		}
		prefix := strings.TrimSuffix(page, ".html")
		pattern := regexp.MustCompile(
			regexp.QuoteMeta(baseURL) + "/" + regexp.QuoteMeta(prefix) + `-[^"<]*?\.html`,
		)
		doc = pattern.ReplaceAllString(doc, baseURL+"/"+current)
	}
	return doc
}

// RefreshLastMod rewrites <lastmod> entries still carrying the sentinel
// placeholder date to the given date.
func RefreshLastMod(doc, sentinel, date string) string {
	if sentinel == "" || sentinel == date {
		return doc
	}
	return strings.ReplaceAll(doc,
		"<lastmod>"+sentinel+"</lastmod>",
		"<lastmod>"+date+"</lastmod>",
	)
}
