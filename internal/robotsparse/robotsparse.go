// Package robotsparse is a thin adapter over temoto/robotstxt satisfying
// the parse/allows/crawl_delay collaborator contract of spec.md §6,
// independent of the politeness engine's caching. Grounded on the
// teacher's internal/fetcher/robots.go, which drives the same library.
package robotsparse

import (
	"fmt"
	"time"

	"github.com/temoto/robotstxt"
)

// Rules is a parsed robots.txt document for one host.
type Rules struct {
	data *robotstxt.RobotsData
}

// Parse parses a raw robots.txt body. An empty body yields rules that
// allow everything; a body the library fails to parse is returned as an
// error, and callers decide policy (the politeness engine treats parse
// failure as allow-all).
func Parse(body []byte) (*Rules, error) {
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil, fmt.Errorf("robotsparse: parse: %w", err)
	}
	return &Rules{data: data}, nil
}

// Allows reports whether userAgent may fetch path under these rules.
func (r *Rules) Allows(userAgent, path string) bool {
	if r == nil || r.data == nil {
		return true
	}
	return r.data.TestAgent(path, userAgent)
}

// CrawlDelay returns the host's declared crawl delay for userAgent, or 0
// if none is specified.
func (r *Rules) CrawlDelay(userAgent string) time.Duration {
	if r == nil || r.data == nil {
		return 0
	}
	group := r.data.FindGroup(userAgent)
	if group == nil {
		return 0
	}
	return group.CrawlDelay
}
