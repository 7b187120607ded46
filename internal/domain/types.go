// Package domain holds the plain data types shared across the fabric:
// the per-domain record a pod owns, the visited record a parser upserts,
// and the small enums both carry. Grounded on the teacher crawler's own
// internal/domain package, which keeps these as dependency-free structs
// separate from the storage layer that persists them.
package domain

import "time"

// Record is the per-domain state a pod owns exclusively (spec.md §3).
// Every field is written only by the domain's owning pod.
type Record struct {
	Domain                string    `json:"domain"`
	LastScheduledFetchUnix int64     `json:"last_scheduled_fetch_unix"`
	RobotsCachedContent    []byte    `json:"robots_cached_content,omitempty"`
	RobotsFetchedUnix      int64     `json:"robots_fetched_unix"`
	RobotsExpiresUnix      int64     `json:"robots_expires_unix"`
	RobotsCrawlDelaySec    int64     `json:"robots_crawl_delay_sec"`
	IsManuallyExcluded     bool      `json:"is_manually_excluded"`
	IsSeeded               bool      `json:"is_seeded"`
	FrontierOffset         int64     `json:"frontier_offset"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// VisitedRecord is the authoritative "have we stored this?" row, keyed by
// url-fingerprint. Written once per successful parse; subsequent writes
// for the same fingerprint are idempotent upserts (spec.md §3, §4.5).
type VisitedRecord struct {
	URLFingerprint  uint64    `json:"url_fingerprint"`
	URL             string    `json:"url"`
	FinalURL        string    `json:"final_url"`
	Domain          string    `json:"domain"`
	StatusCode      int       `json:"status_code"`
	CrawledAt       time.Time `json:"crawled_at"`
	ContentType     string    `json:"content_type"`
	ContentHash     string    `json:"content_hash,omitempty"`
	ContentDirShard int       `json:"content_dir_shard"`
	ContentStored   bool      `json:"content_stored"`
}

// FrontierEntry is one line of a domain's append-only frontier file.
type FrontierEntry struct {
	URL   string
	Depth int
}
