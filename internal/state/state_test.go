package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/koltyakov/snare/internal/domain"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "history.json"))
	st := s.Load()
	if len(st.CurrentURLs) != 0 {
		t.Fatalf("expected empty state, got %v", st.CurrentURLs)
	}
	if st.CurrentURLs == nil {
		t.Fatal("expected allocated mapping")
	}
}

func TestLoadGarbageFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	st := NewStore(path).Load()
	if len(st.CurrentURLs) != 0 {
		t.Fatalf("garbage state should load as empty, got %v", st.CurrentURLs)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewStore(filepath.Join(t.TempDir(), "logs", "history.json"))

	st := domain.NewState()
	st.CurrentURLs["a-6hp.html"] = "a-6hp-k3x9p2.html"
	st.CurrentURLs["a-7sm.html"] = "a-7sm-m8q4w1.html"

	if err := s.Save(st); err != nil {
		t.Fatal(err)
	}

	got := s.Load()
	if len(got.CurrentURLs) != 2 {
		t.Fatalf("expected 2 mappings, got %d", len(got.CurrentURLs))
	}
	for page, want := range st.CurrentURLs {
		if got.CurrentURLs[page] != want {
			t.Fatalf("page %s: got %q, want %q", page, got.CurrentURLs[page], want)
		}
	}
	if got.LastUpdated.IsZero() {
		t.Fatal("expected last_updated to be set on save")
	}
}

func TestSaveFileShape(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	s := NewStore(path)

	st := domain.NewState()
	st.CurrentURLs["a-6hp.html"] = "a-6hp-abc123.html"
	if err := s.Save(st); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(b)
	for _, want := range []string{`"current_urls"`, `"last_updated"`, `"a-6hp.html": "a-6hp-abc123.html"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("state file missing %q:\n%s", want, content)
		}
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the state file in dir, got %d entries", len(entries))
	}
}
