package artifacts

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koltyakov/snare/internal/domain"
)

const sitemapFixture = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>https://ai-crawler.org/index.html</loc>
    <lastmod>2024-12-15</lastmod>
  </url>
  <url>
    <loc>https://ai-crawler.org/a-6hp-old123.html</loc>
    <lastmod>2024-12-15</lastmod>
  </url>
  <url>
    <loc>https://ai-crawler.org/a-7sm-zzz999.html</loc>
    <lastmod>2024-12-15</lastmod>
  </url>
</urlset>
`

func testState() domain.State {
	st := domain.NewState()
	st.CurrentURLs["a-6hp.html"] = "a-6hp-new456.html"
	st.CurrentURLs["a-7sm.html"] = "a-7sm-fresh1.html"
	return st
}

func TestApplySitemapReplacesRotatedURLs(t *testing.T) {
	t.Parallel()

	got := ApplySitemap(sitemapFixture, "https://ai-crawler.org",
		[]string{"a-6hp.html", "a-7sm.html"}, testState())

	if !strings.Contains(got, "https://ai-crawler.org/a-6hp-new456.html") {
		t.Fatal("expected a-6hp URL to be replaced")
	}
	if !strings.Contains(got, "https://ai-crawler.org/a-7sm-fresh1.html") {
		t.Fatal("expected a-7sm URL to be replaced")
	}
	if strings.Contains(got, "a-6hp-old123.html") || strings.Contains(got, "a-7sm-zzz999.html") {
		t.Fatal("stale honeypot URLs must be gone")
	}
	if !strings.Contains(got, "https://ai-crawler.org/index.html") {
		t.Fatal("non-honeypot URLs must be untouched")
	}
}

func TestApplySitemapUnrotatedPageUntouched(t *testing.T) {
	t.Parallel()

	st := domain.NewState() // nothing rotated yet
	got := ApplySitemap(sitemapFixture, "https://ai-crawler.org",
		[]string{"a-6hp.html", "a-7sm.html"}, st)
	if got != sitemapFixture {
		t.Fatal("sitemap should be unchanged when no page has rotated")
	}
}

func TestApplySitemapIdempotent(t *testing.T) {
	t.Parallel()

	pages := []string{"a-6hp.html", "a-7sm.html"}
	st := testState()
	once := ApplySitemap(sitemapFixture, "https://ai-crawler.org", pages, st)
	twice := ApplySitemap(once, "https://ai-crawler.org", pages, st)
	if once != twice {
		t.Fatal("second sitemap application must be a no-op")
	}
}

func TestRefreshLastMod(t *testing.T) {
	t.Parallel()

	got := RefreshLastMod(sitemapFixture, "2024-12-15", "2025-06-01")
	if strings.Contains(got, "<lastmod>2024-12-15</lastmod>") {
		t.Fatal("sentinel dates must be refreshed")
	}
	if strings.Count(got, "<lastmod>2025-06-01</lastmod>") != 3 {
		t.Fatal("every sentinel occurrence must be refreshed")
	}
	if again := RefreshLastMod(got, "2024-12-15", "2025-06-02"); again != got {
		t.Fatal("refresh with no sentinel left must be a no-op")
	}
}

func TestApplyFilenameMapping(t *testing.T) {
	t.Parallel()

	doc := `<a href="a-6hp-old123.html">deep dive</a> <a href="other.html">x</a>`
	got := ApplyFilenameMapping(doc, map[string]string{"a-6hp-old123.html": "a-6hp-new456.html"})
	want := `<a href="a-6hp-new456.html">deep dive</a> <a href="other.html">x</a>`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	if again := ApplyFilenameMapping(got, map[string]string{"a-6hp-old123.html": "a-6hp-new456.html"}); again != got {
		t.Fatal("mapping with no remaining matches must be a no-op")
	}
}

func TestUpdaterApplyIdempotentOnDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sitemap := filepath.Join(dir, "sitemap.xml")
	hub := filepath.Join(dir, "hp-1.html")
	if err := os.WriteFile(sitemap, []byte(sitemapFixture), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hub, []byte(`<a href="a-6hp-old123.html">guide</a>`), 0o644); err != nil {
		t.Fatal(err)
	}

	u := NewUpdater(Config{
		Dir:          dir,
		BaseURL:      "https://ai-crawler.org",
		Pages:        []string{"a-6hp.html", "a-7sm.html"},
		SitemapFile:  "sitemap.xml",
		HubPages:     []string{"hp-1.html"},
		SentinelDate: "2024-12-15",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rotations := []domain.Rotation{
		{Page: "a-6hp.html", OldURL: "a-6hp-old123.html", NewURL: "a-6hp-new456.html"},
	}
	u.Apply(testState(), rotations)

	first, err := os.ReadFile(sitemap)
	if err != nil {
		t.Fatal(err)
	}
	hubFirst, err := os.ReadFile(hub)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(hubFirst), "a-6hp-new456.html") {
		t.Fatal("hub page should reference the new filename")
	}

	// Second run with no intervening rotation.
	u.Apply(testState(), nil)

	second, err := os.ReadFile(sitemap)
	if err != nil {
		t.Fatal(err)
	}
	hubSecond, err := os.ReadFile(hub)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Fatal("sitemap must be byte-identical after a repeat run")
	}
	if string(hubFirst) != string(hubSecond) {
		t.Fatal("hub page must be byte-identical after a repeat run")
	}
}

func TestUpdaterMissingFilesAreNonFatal(t *testing.T) {
	t.Parallel()

	u := NewUpdater(Config{
		Dir:         t.TempDir(),
		BaseURL:     "https://ai-crawler.org",
		Pages:       []string{"a-6hp.html"},
		SitemapFile: "sitemap.xml",
		HubPages:    []string{"hp-1.html"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic or fail the cycle.
	u.Apply(testState(), []domain.Rotation{
		{Page: "a-6hp.html", OldURL: "a-6hp.html", NewURL: "a-6hp-new456.html"},
	})
}
