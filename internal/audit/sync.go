package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/koltyakov/snare/internal/domain"
	"github.com/koltyakov/snare/internal/store/sqlite"
)

// SyncIndex mirrors rotation events appended to the JSONL log since the
// last sync into the activity index. The index stores a byte-offset
// cursor per log, so repeated syncs are incremental; event IDs dedupe
// re-reads after a cursor reset. A missing log is not an error.
func (t *Trail) SyncIndex(ctx context.Context, index *sqlite.Store) error {
	f, err := os.Open(t.rotationLogPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open rotation log: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat rotation log: %w", err)
	}
	offset, err := index.Cursor(ctx, t.rotationLogPath)
	if err != nil {
		return fmt.Errorf("load rotation cursor: %w", err)
	}
	if offset > info.Size() {
		// Log was truncated or replaced; start over. Inserts are
		// id-deduplicated so replay is safe.
		offset = 0
		if err := index.ResetCursor(ctx, t.rotationLogPath); err != nil {
			return fmt.Errorf("reset rotation cursor: %w", err)
		}
	}
	if offset == info.Size() {
		return nil
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek rotation log: %w", err)
	}

	var events []domain.RotationEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev domain.RotationEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan rotation log: %w", err)
	}

	if err := index.InsertRotationEvents(ctx, events); err != nil {
		return fmt.Errorf("index rotation events: %w", err)
	}
	if err := index.SetCursor(ctx, t.rotationLogPath, info.Size()); err != nil {
		return fmt.Errorf("advance rotation cursor: %w", err)
	}
	return nil
}
