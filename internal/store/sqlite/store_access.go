package sqlite

import (
	"context"
	"strings"

	"github.com/koltyakov/snare/internal/domain"
)

// InsertAccessRecords appends a batch of access records to the index in
// one transaction.
func (s *Store) InsertAccessRecords(ctx context.Context, records []domain.AccessRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO access_records(ts, url, user_agent, ip_address, type)
VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.URL, r.UserAgent, r.IPAddress, r.Type); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AccessTotals returns the total record count and the distinct IP and
// user-agent counts in one query.
func (s *Store) AccessTotals(ctx context.Context) (total, uniqueIPs, uniqueAgents int, err error) {
	err = s.db.QueryRowContext(ctx, `
SELECT COUNT(1), COUNT(DISTINCT ip_address), COUNT(DISTINCT user_agent)
FROM access_records`).Scan(&total, &uniqueIPs, &uniqueAgents)
	return total, uniqueIPs, uniqueAgents, err
}

// AccessCountsByURL returns the per-URL access frequency table.
func (s *Store) AccessCountsByURL(ctx context.Context) (map[string]int, error) {
	return s.countsBy(ctx, "url")
}

// AccessCountsByIP returns the per-address access frequency table.
func (s *Store) AccessCountsByIP(ctx context.Context) (map[string]int, error) {
	return s.countsBy(ctx, "ip_address")
}

// AccessCountsByUserAgent returns the per-agent access frequency table.
func (s *Store) AccessCountsByUserAgent(ctx context.Context) (map[string]int, error) {
	return s.countsBy(ctx, "user_agent")
}

// countsBy groups access_records by one of its fixed columns. column is
// always one of the callers' literals above, never user input.
func (s *Store) countsBy(ctx context.Context, column string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+column+`, COUNT(1) FROM access_records GROUP BY `+column)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[key] = count
	}
	return out, rows.Err()
}

// IPCount pairs a client address with its access count.
type IPCount struct {
	IP    string
	Count int
}

// HighFrequencyIPs returns every client address with more than threshold
// recorded accesses, busiest first.
func (s *Store) HighFrequencyIPs(ctx context.Context, threshold int) ([]IPCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ip_address, COUNT(1) AS n
FROM access_records
GROUP BY ip_address
HAVING n > ?
ORDER BY n DESC, ip_address ASC`, threshold)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []IPCount
	for rows.Next() {
		var c IPCount
		if err := rows.Scan(&c.IP, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CrawlerAccesses returns every access whose user agent contains one of
// the given indicators (case-insensitive), in insertion order.
func (s *Store) CrawlerAccesses(ctx context.Context, indicators []string) ([]domain.AccessRecord, error) {
	if len(indicators) == 0 {
		return nil, nil
	}
	clauses := make([]string, 0, len(indicators))
	args := make([]any, 0, len(indicators))
	for _, ind := range indicators {
		clauses = append(clauses, "lower(user_agent) LIKE ?")
		args = append(args, "%"+strings.ToLower(ind)+"%")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT ts, url, user_agent, ip_address, type
FROM access_records
WHERE `+strings.Join(clauses, " OR ")+`
ORDER BY id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AccessRecord
	for rows.Next() {
		var r domain.AccessRecord
		if err := rows.Scan(&r.Timestamp, &r.URL, &r.UserAgent, &r.IPAddress, &r.Type); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
