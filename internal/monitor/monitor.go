// Package monitor follows the access log in near real time. The tailer
// is a cooperative polling loop with an explicit byte-offset cursor; the
// optional feed pushes observed records to operator dashboards over
// websocket.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/koltyakov/snare/internal/domain"
)

// DefaultPollInterval bounds how stale the tailer's view may be.
const DefaultPollInterval = time.Second

// Tailer polls the access log for growth and reports newly appended
// records. Single goroutine, cancellable via context.
type Tailer struct {
	path     string
	interval time.Duration
	log      *slog.Logger
}

// NewTailer creates a tailer over the JSONL access log at path. A
// non-positive interval falls back to [DefaultPollInterval].
func NewTailer(path string, interval time.Duration, logger *slog.Logger) *Tailer {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Tailer{path: path, interval: interval, log: logger}
}

// Run polls until ctx is cancelled, invoking onRecord for every parsed
// record appended to the log. The first poll reports the log's existing
// content. Malformed lines are skipped. Returns nil on cancellation.
func (t *Tailer) Run(ctx context.Context, onRecord func(domain.AccessRecord)) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	var offset int64
	for {
		// Poll immediately on entry, then on every tick.
		next, err := t.poll(offset, onRecord)
		if err != nil {
			t.log.Warn("access log poll failed", "error", err)
		} else {
			offset = next
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll reads the suffix of the log past offset, reports complete parsed
// lines, and returns the new offset. The offset only advances through
// the last newline seen: a line the writer is still appending stays
// unconsumed until it is complete.
func (t *Tailer) poll(offset int64, onRecord func(domain.AccessRecord)) (int64, error) {
	info, err := os.Stat(t.path)
	if os.IsNotExist(err) {
		return 0, nil // log not created yet
	}
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		t.log.Warn("access log shrank, restarting from beginning", "log", t.path)
		offset = 0
	}
	if info.Size() == offset {
		return offset, nil
	}

	f, err := os.Open(t.path)
	if err != nil {
		return offset, err
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return offset, err
	}

	idx := bytes.LastIndexByte(buf, '\n')
	if idx < 0 {
		return offset, nil // partial line, wait for the writer
	}

	for _, line := range bytes.Split(buf[:idx], []byte{'\n'}) {
		if len(line) == 0 {
			continue
		}
		var rec domain.AccessRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		onRecord(rec)
	}
	return offset + int64(idx) + 1, nil
}
