package sqlite

import (
	"context"

	"github.com/koltyakov/snare/internal/domain"
)

// InsertRotationEvents appends a batch of rotation events to the index.
// Events already present (by ID) are ignored, so re-ingesting a log
// region is harmless.
func (s *Store) InsertRotationEvents(ctx context.Context, events []domain.RotationEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO rotation_events(id, ts, old_url, new_url, action)
VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, ev.ID, ev.Timestamp, ev.OldURL, ev.NewURL, ev.Action); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RecentRotationEvents returns up to limit rotation events, newest first.
func (s *Store) RecentRotationEvents(ctx context.Context, limit int) ([]domain.RotationEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, old_url, new_url, action
FROM rotation_events
ORDER BY ts DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.RotationEvent
	for rows.Next() {
		var ev domain.RotationEvent
		if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.OldURL, &ev.NewURL, &ev.Action); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RotationEventCount returns the number of indexed rotation events.
func (s *Store) RotationEventCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rotation_events`).Scan(&n)
	return n, err
}
