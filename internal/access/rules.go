package access

import "strings"

// HighFrequencyThreshold is the access count above which a single client
// address is flagged as suspicious.
const HighFrequencyThreshold = 10

// crawlerIndicators are case-insensitive substrings that mark a declared
// crawler user agent. "googlebot" and "bingbot" are subsumed by "bot"
// but kept explicit so the list reads as the known-crawler inventory.
var crawlerIndicators = []string{
	"bot",
	"crawler",
	"spider",
	"scraper",
	"googlebot",
	"bingbot",
}

// CrawlerIndicators returns the indicator list for query building.
func CrawlerIndicators() []string {
	out := make([]string, len(crawlerIndicators))
	copy(out, crawlerIndicators)
	return out
}

// IsCrawlerAgent reports whether the user agent string contains any
// crawler indicator.
func IsCrawlerAgent(userAgent string) bool {
	lower := strings.ToLower(userAgent)
	for _, ind := range crawlerIndicators {
		if strings.Contains(lower, ind) {
			return true
		}
	}
	return false
}
