package monitor

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/koltyakov/snare/internal/access"
	"github.com/koltyakov/snare/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorder struct {
	mu   sync.Mutex
	recs []domain.AccessRecord
}

func (r *recorder) record(rec domain.AccessRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func (r *recorder) snapshot() []domain.AccessRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.AccessRecord(nil), r.recs...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTailerReportsExistingAndAppended(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "access.log")
	logger := access.NewLogger(logPath)
	if _, err := logger.Log("/a-1hp-x.html", "curl/8.0", "10.0.0.1"); err != nil {
		t.Fatal(err)
	}

	var rec recorder
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := NewTailer(logPath, 20*time.Millisecond, discard())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tailer.Run(ctx, rec.record)
	}()

	// Existing content comes through on the first poll.
	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })

	if _, err := logger.Log("/a-2hp-y.html", "Googlebot/2.1", "10.0.0.2"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })

	got := rec.snapshot()
	if got[0].IPAddress != "10.0.0.1" || got[1].IPAddress != "10.0.0.2" {
		t.Fatalf("records out of order: %+v", got)
	}
	if got[1].Type != domain.TypeHoneypotAccess {
		t.Fatalf("unexpected record type %q", got[1].Type)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tailer did not stop after cancel")
	}
}

func TestTailerSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "access.log")
	content := `{"timestamp":"2025-06-01T00:00:00Z","url":"/a","user_agent":"ua","ip_address":"1.2.3.4","type":"honeypot_access"}
not json at all
{"timestamp":"2025-06-01T00:00:01Z","url":"/b","user_agent":"ua","ip_address":"1.2.3.5","type":"honeypot_access"}
`
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var rec recorder
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := NewTailer(logPath, 20*time.Millisecond, discard())
	go func() { _ = tailer.Run(ctx, rec.record) }()

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	got := rec.snapshot()
	if got[0].URL != "/a" || got[1].URL != "/b" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestTailerHoldsPartialTrailingLine(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "access.log")
	complete := `{"timestamp":"2025-06-01T00:00:00Z","url":"/a","user_agent":"ua","ip_address":"1.2.3.4","type":"honeypot_access"}` + "\n"
	partial := `{"timestamp":"2025-06-01T00:00:01Z","url":"/b","user_agent":"ua","ip_`
	if err := os.WriteFile(logPath, []byte(complete+partial), 0o644); err != nil {
		t.Fatal(err)
	}

	var rec recorder
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := NewTailer(logPath, 20*time.Millisecond, discard())
	go func() { _ = tailer.Run(ctx, rec.record) }()

	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
	if got := rec.snapshot(); got[0].URL != "/a" {
		t.Fatalf("unexpected record: %+v", got[0])
	}

	// Give the tailer a few more polls over the unfinished line.
	time.Sleep(100 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 1 {
		t.Fatalf("half-written line was consumed: %+v", got)
	}

	// The writer finishes the line; it arrives exactly once.
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString(`address":"1.2.3.5","type":"honeypot_access"}` + "\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) == 2 })
	got := rec.snapshot()
	if got[1].URL != "/b" || got[1].IPAddress != "1.2.3.5" {
		t.Fatalf("completed line parsed wrong: %+v", got[1])
	}
}

func TestTailerToleratesMissingLog(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "access.log")

	var rec recorder
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tailer := NewTailer(logPath, 20*time.Millisecond, discard())
	go func() { _ = tailer.Run(ctx, rec.record) }()

	// Log appears after the tailer started.
	time.Sleep(50 * time.Millisecond)
	logger := access.NewLogger(logPath)
	if _, err := logger.Log("/late.html", "curl/8.0", "10.0.0.9"); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool { return len(rec.snapshot()) == 1 })
}

func TestFeedBroadcast(t *testing.T) {
	t.Parallel()

	feed := NewFeed(discard())
	srv := httptest.NewServer(feed.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()

	waitFor(t, func() bool { return feed.ClientCount() == 1 })

	want := domain.AccessRecord{
		Timestamp: time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
		URL:       "/a-1hp-abc123.html",
		UserAgent: "Googlebot/2.1",
		IPAddress: "203.0.113.7",
		Type:      domain.TypeHoneypotAccess,
	}
	feed.Broadcast(want)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got domain.AccessRecord
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if !got.Timestamp.Equal(want.Timestamp) || got.URL != want.URL ||
		got.UserAgent != want.UserAgent || got.IPAddress != want.IPAddress || got.Type != want.Type {
		t.Fatalf("broadcast mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestFeedDropsClosedClients(t *testing.T) {
	t.Parallel()

	feed := NewFeed(discard())
	srv := httptest.NewServer(feed.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return feed.ClientCount() == 1 })

	_ = conn.Close()
	waitFor(t, func() bool { return feed.ClientCount() == 0 })
}
