// Package audit maintains the two append-only rotation audit trails:
// a JSONL log of individual rotation events and a CSV log of
// orchestrated cycles. Both files are only ever grown, never rewritten.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/koltyakov/snare/internal/domain"
)

// Trail appends audit records under a common log directory.
type Trail struct {
	rotationLogPath string
	cyclesCSVPath   string
}

// NewTrail creates a trail writing the rotation event log and the cycle
// CSV at the given paths.
func NewTrail(rotationLogPath, cyclesCSVPath string) *Trail {
	return &Trail{
		rotationLogPath: rotationLogPath,
		cyclesCSVPath:   cyclesCSVPath,
	}
}

// RotationLogPath returns the JSONL rotation event log location.
func (t *Trail) RotationLogPath() string {
	return t.rotationLogPath
}

// CyclesCSVPath returns the cycle CSV audit file location.
func (t *Trail) CyclesCSVPath() string {
	return t.cyclesCSVPath
}

// AppendRotation records one rotation event as a JSON line. The event's
// ID and timestamp are filled in if unset.
func (t *Trail) AppendRotation(ev domain.RotationEvent) (domain.RotationEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Action == "" {
		ev.Action = domain.ActionURLRotation
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("marshal rotation event: %w", err)
	}
	if err := appendLine(t.rotationLogPath, b); err != nil {
		return ev, fmt.Errorf("append rotation event: %w", err)
	}
	return ev, nil
}

// RecordCycle appends one row to the cycle CSV:
//
//	<epoch-millis>,<YYYY-MM-DD HH:MM:SS>,<revision>,"<json change map>"
//
// The JSON value maps each rotated page to its human-readable change
// descriptions, with embedded quotes doubled for CSV safety. A cycle
// with no changes appends nothing.
func (t *Trail) RecordCycle(now time.Time, revision string, changes map[string][]string) error {
	if len(changes) == 0 {
		return nil
	}

	b, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal cycle changes: %w", err)
	}
	escaped := strings.ReplaceAll(string(b), `"`, `""`)
	row := fmt.Sprintf("%d,%s,%s,\"%s\"\n",
		now.UnixMilli(),
		now.Format("2006-01-02 15:04:05"),
		revision,
		escaped,
	)
	if err := appendRaw(t.cyclesCSVPath, []byte(row)); err != nil {
		return fmt.Errorf("append cycle record: %w", err)
	}
	return nil
}

// ChangesFor builds the per-page change description map for a set of
// performed rotations, in the shape the cycle CSV expects.
func ChangesFor(rotations []domain.Rotation) map[string][]string {
	if len(rotations) == 0 {
		return nil
	}
	changes := make(map[string][]string, len(rotations))
	for _, r := range rotations {
		changes[r.Page] = append(changes[r.Page], "URL rotated to "+r.NewURL)
	}
	return changes
}

func appendLine(path string, b []byte) error {
	return appendRaw(path, append(b, '\n'))
}

func appendRaw(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
