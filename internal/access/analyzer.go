package access

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/koltyakov/snare/internal/domain"
	"github.com/koltyakov/snare/internal/store/sqlite"
)

// Analyzer ingests the access log into the activity index and computes
// the aggregate analysis with its two suspicious-activity rules.
type Analyzer struct {
	logPath      string
	snapshotPath string
	index        *sqlite.Store
	log          *slog.Logger
}

// NewAnalyzer creates an analyzer over the JSONL access log at logPath.
// Each analysis overwrites the snapshot file at snapshotPath.
func NewAnalyzer(logPath, snapshotPath string, index *sqlite.Store, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		logPath:      logPath,
		snapshotPath: snapshotPath,
		index:        index,
		log:          logger,
	}
}

// Analyze streams unseen access log lines into the index (malformed
// lines are skipped, not fatal), computes the aggregate view, persists
// it as the analysis snapshot, and returns it.
//
// Flag rules: a client address with more than [HighFrequencyThreshold]
// accesses produces one high_frequency_ip entry; every access with a
// crawler user agent produces one crawler_user_agent entry.
func (a *Analyzer) Analyze(ctx context.Context) (domain.Analysis, error) {
	if _, err := os.Stat(a.logPath); err != nil {
		return domain.Analysis{}, domain.ErrNoAccessLog
	}
	if err := a.ingest(ctx); err != nil {
		return domain.Analysis{}, fmt.Errorf("ingest access log: %w", err)
	}

	var analysis domain.Analysis
	var err error
	analysis.TotalAccesses, analysis.UniqueIPs, analysis.UniqueUserAgents, err = a.index.AccessTotals(ctx)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("access totals: %w", err)
	}
	if analysis.AccessByURL, err = a.index.AccessCountsByURL(ctx); err != nil {
		return domain.Analysis{}, fmt.Errorf("per-url counts: %w", err)
	}
	if analysis.AccessByIP, err = a.index.AccessCountsByIP(ctx); err != nil {
		return domain.Analysis{}, fmt.Errorf("per-ip counts: %w", err)
	}
	if analysis.AccessByUserAgent, err = a.index.AccessCountsByUserAgent(ctx); err != nil {
		return domain.Analysis{}, fmt.Errorf("per-agent counts: %w", err)
	}

	flaggedIPs, err := a.index.HighFrequencyIPs(ctx, HighFrequencyThreshold)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("high frequency ips: %w", err)
	}
	for _, f := range flaggedIPs {
		analysis.SuspiciousActivity = append(analysis.SuspiciousActivity, domain.SuspiciousActivity{
			Type:  domain.SuspiciousHighFrequencyIP,
			IP:    f.IP,
			Count: f.Count,
		})
	}

	crawlers, err := a.index.CrawlerAccesses(ctx, CrawlerIndicators())
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("crawler accesses: %w", err)
	}
	for _, rec := range crawlers {
		analysis.SuspiciousActivity = append(analysis.SuspiciousActivity, domain.SuspiciousActivity{
			Type:      domain.SuspiciousCrawlerUserAgent,
			UserAgent: rec.UserAgent,
			IP:        rec.IPAddress,
			Timestamp: rec.Timestamp.Format(time.RFC3339),
		})
	}

	if analysis.TotalAccesses > 0 {
		if err := a.writeSnapshot(analysis); err != nil {
			return analysis, err
		}
	}
	return analysis, nil
}

// ingest reads access log lines appended since the last analysis (the
// index stores a byte-offset cursor per log) and inserts them into the
// activity index in one batch.
func (a *Analyzer) ingest(ctx context.Context) error {
	f, err := os.Open(a.logPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	cursor, err := a.index.Cursor(ctx, a.logPath)
	if err != nil {
		return err
	}
	if cursor > info.Size() {
		// Log was truncated or replaced; start over.
		a.log.Warn("access log shrank, re-ingesting from start", "log", a.logPath)
		if err := a.index.ResetCursor(ctx, a.logPath); err != nil {
			return err
		}
		cursor = 0
	}
	if cursor == info.Size() {
		return nil
	}

	if _, err := f.Seek(cursor, io.SeekStart); err != nil {
		return err
	}

	var records []domain.AccessRecord
	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.AccessRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if skipped > 0 {
		a.log.Warn("skipped malformed access log lines", "count", skipped)
	}

	if err := a.index.InsertAccessRecords(ctx, records); err != nil {
		return err
	}
	return a.index.SetCursor(ctx, a.logPath, info.Size())
}

func (a *Analyzer) writeSnapshot(analysis domain.Analysis) error {
	b, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	if err := os.WriteFile(a.snapshotPath, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write analysis snapshot: %w", err)
	}
	return nil
}
