// Package domain defines the core data types shared across the snare
// rotator, orchestrator, and monitoring layers.
package domain

import "time"

// Record type constants tag entries in the append-only JSONL logs.
const (
	ActionURLRotation  = "url_rotation"
	TypeHoneypotAccess = "honeypot_access"
)

// Suspicious activity type constants returned by the analyzer.
const (
	SuspiciousHighFrequencyIP  = "high_frequency_ip"
	SuspiciousCrawlerUserAgent = "crawler_user_agent"
)

// State is the rotation state: the mapping from each logical page's
// canonical name to the filename currently backing it on disk.
// Filenames must be unique across pages at any instant.
type State struct {
	CurrentURLs map[string]string `json:"current_urls"`
	LastUpdated time.Time         `json:"last_updated"`
}

// NewState returns an empty state with an allocated mapping.
func NewState() State {
	return State{CurrentURLs: map[string]string{}}
}

// Current resolves the filename currently backing page, falling back to
// the page's canonical name when it has never been rotated.
func (s State) Current(page string) string {
	if cur, ok := s.CurrentURLs[page]; ok && cur != "" {
		return cur
	}
	return page
}

// RotationEvent is one immutable rotation audit record. Appended to the
// rotation log as a single JSON line; never mutated or deleted.
type RotationEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	OldURL    string    `json:"old_url"`
	NewURL    string    `json:"new_url"`
	Action    string    `json:"action"`
}

// AccessRecord is one immutable honeypot access record. Appended to the
// access log as a single JSON line; consumed only by the read-side
// analyzer, never by rotation.
type AccessRecord struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
	Type      string    `json:"type"`
}

// Rotation describes one performed rename within a rotation pass.
type Rotation struct {
	Page   string // canonical page name
	OldURL string // filename before the rename
	NewURL string // filename after the rename
}

// SuspiciousActivity is one flagged entry in an analysis result.
// Type is one of the Suspicious* constants; fields not relevant to the
// rule are left zero and omitted from JSON.
type SuspiciousActivity struct {
	Type      string `json:"type"`
	IP        string `json:"ip,omitempty"`
	Count     int    `json:"count,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Analysis is the aggregate view over the full access log. It is
// persisted as a snapshot (overwritten each run, not appended).
type Analysis struct {
	TotalAccesses      int                  `json:"total_accesses"`
	UniqueIPs          int                  `json:"unique_ips"`
	UniqueUserAgents   int                  `json:"unique_user_agents"`
	AccessByURL        map[string]int       `json:"access_by_url"`
	AccessByIP         map[string]int       `json:"access_by_ip"`
	AccessByUserAgent  map[string]int       `json:"access_by_user_agent"`
	SuspiciousActivity []SuspiciousActivity `json:"suspicious_activity"`
}
