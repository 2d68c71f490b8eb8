// Package access records honeypot page accesses to an append-only JSONL
// log and analyzes the log for crawler activity. The rotation logic
// never reads this data; analysis is strictly read-side.
package access

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/koltyakov/snare/internal/domain"
)

// Logger appends access records to the access log. No deduplication and
// no rate limiting happen at this layer.
type Logger struct {
	path string
}

// NewLogger creates a logger appending to the JSONL file at path.
func NewLogger(path string) *Logger {
	return &Logger{path: path}
}

// Path returns the access log location.
func (l *Logger) Path() string {
	return l.path
}

// Log appends one access record stamped with the current time.
func (l *Logger) Log(url, userAgent, ipAddress string) (domain.AccessRecord, error) {
	return l.LogAt(url, userAgent, ipAddress, time.Now())
}

// LogAt appends one access record with an explicit timestamp.
func (l *Logger) LogAt(url, userAgent, ipAddress string, ts time.Time) (domain.AccessRecord, error) {
	rec := domain.AccessRecord{
		Timestamp: ts,
		URL:       url,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		Type:      domain.TypeHoneypotAccess,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("marshal access record: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return rec, fmt.Errorf("create access log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return rec, fmt.Errorf("open access log: %w", err)
	}
	if _, err := f.Write(append(b, '\n')); err != nil {
		_ = f.Close()
		return rec, fmt.Errorf("append access record: %w", err)
	}
	return rec, f.Close()
}
