package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/koltyakov/snare/internal/access"
	"github.com/koltyakov/snare/internal/config"
	"github.com/koltyakov/snare/internal/domain"
	"github.com/koltyakov/snare/internal/monitor"
)

func runMonitor(ctx context.Context, args []string) int {
	mode := "analyze"
	if len(args) > 0 {
		switch args[0] {
		case "analyze", "tail":
			mode = args[0]
			args = args[1:]
		}
	}

	cfg, err := config.ParseMonitorFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "monitor config error:", err)
		return 2
	}

	if mode == "tail" {
		return runMonitorTail(ctx, cfg)
	}
	return runMonitorAnalyze(ctx, cfg)
}

func runMonitorAnalyze(ctx context.Context, cfg config.MonitorConfig) int {
	logger, closeLog := runLogger(cfg.Site)
	defer closeLog()

	index, err := openIndex(ctx, cfg.Site)
	if err != nil {
		fmt.Fprintln(os.Stderr, "activity index error:", err)
		return 1
	}
	defer func() { _ = index.Close() }()

	analyzer := access.NewAnalyzer(
		cfg.Site.Resolve(cfg.Site.AccessLogPath),
		cfg.Site.Resolve(cfg.Site.AnalysisPath),
		index,
		logger,
	)

	analysis, err := analyzer.Analyze(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoAccessLog) {
			fmt.Println("No access log found.")
			return 0
		}
		fmt.Fprintln(os.Stderr, "analysis error:", err)
		return 1
	}

	printAnalysis(os.Stdout, analysis)
	return 0
}

func runMonitorTail(ctx context.Context, cfg config.MonitorConfig) int {
	logger, closeLog := runLogger(cfg.Site)
	defer closeLog()

	var feed *monitor.Feed
	if cfg.Listen != "" {
		feed = monitor.NewFeed(logger)
		go func() {
			if err := feed.Serve(ctx, cfg.Listen); err != nil {
				logger.Error("feed server stopped", "error", err)
			}
		}()
		logger.Info("websocket feed listening", "addr", cfg.Listen)
	}

	fmt.Println("Following honeypot accesses (Ctrl+C to stop)...")
	tailer := monitor.NewTailer(cfg.Site.Resolve(cfg.Site.AccessLogPath), cfg.PollInterval, logger)
	err := tailer.Run(ctx, func(rec domain.AccessRecord) {
		fmt.Println(formatAccess(rec))
		if feed != nil {
			feed.Broadcast(rec)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "tail error:", err)
		return 1
	}
	return 0
}

// formatAccess renders one tailed access record. Records whose agent
// declares a crawler get tagged inline so they stand out while
// scrolling.
func formatAccess(rec domain.AccessRecord) string {
	line := fmt.Sprintf("[%s] %s from %s", rec.Timestamp.Format(time.RFC3339), rec.URL, rec.IPAddress)
	if access.IsCrawlerAgent(rec.UserAgent) {
		line += "  [crawler]"
	}
	return line + fmt.Sprintf("\n  User-Agent: %s", rec.UserAgent)
}

// printAnalysis renders the aggregate view the way operators read it:
// totals first, then the busiest URLs and addresses, then flags.
func printAnalysis(w io.Writer, analysis domain.Analysis) {
	fmt.Fprintln(w, "HONEYPOT ACCESS ANALYSIS")
	fmt.Fprintln(w, "Total accesses:", analysis.TotalAccesses)
	fmt.Fprintln(w, "Unique IPs:", analysis.UniqueIPs)
	fmt.Fprintln(w, "Unique user agents:", analysis.UniqueUserAgents)

	fmt.Fprintln(w, "\nTop accessed URLs:")
	for _, e := range topCounts(analysis.AccessByURL, 5) {
		fmt.Fprintf(w, "  %s: %d accesses\n", e.key, e.count)
	}

	fmt.Fprintln(w, "\nTop IP addresses:")
	for _, e := range topCounts(analysis.AccessByIP, 5) {
		fmt.Fprintf(w, "  %s: %d accesses\n", e.key, e.count)
	}

	if len(analysis.SuspiciousActivity) == 0 {
		fmt.Fprintln(w, "\nNo suspicious activity detected")
		return
	}
	fmt.Fprintln(w, "\nSUSPICIOUS ACTIVITY DETECTED:")
	for _, s := range analysis.SuspiciousActivity {
		switch s.Type {
		case domain.SuspiciousHighFrequencyIP:
			fmt.Fprintf(w, "  High frequency IP: %s (%d accesses)\n", s.IP, s.Count)
		case domain.SuspiciousCrawlerUserAgent:
			fmt.Fprintf(w, "  Crawler detected: %s from %s\n", s.UserAgent, s.IP)
		}
	}
}

type countEntry struct {
	key   string
	count int
}

// topCounts returns up to n entries sorted by descending count, ties by
// key for stable output.
func topCounts(m map[string]int, n int) []countEntry {
	entries := make([]countEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, countEntry{key: k, count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
