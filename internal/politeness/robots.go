package politeness

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/httpfetch"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/robotsparse"
)

// DefaultRobotsTTL matches the teacher's robots.go default cache TTL.
const DefaultRobotsTTL = 24 * time.Hour

// robotsTxtPath is the well-known robots.txt location.
const robotsTxtPath = "/robots.txt"

// robotsResult is what a robots lookup resolves to: either parsed rules,
// or an explicit allow-all (missing robots.txt, fetch error, or parse
// failure all degrade to allow-all per spec.md §4.3).
type robotsResult struct {
	rules    *robotsparse.Rules
	allowAll bool
}

// robotsCache fetches and caches robots.txt per domain: memory (via the
// record cache) -> pod store (TTL respected) -> network. A per-domain
// singleflight group guarantees only one network fetch per domain is
// ever in flight, per spec.md §4.3's "Caching invariants".
type robotsCache struct {
	http      *httpfetch.Client
	userAgent string
	ttl       time.Duration
	group     singleflight.Group
}

func newRobotsCache(client *httpfetch.Client, userAgent string, ttl time.Duration) *robotsCache {
	if ttl <= 0 {
		ttl = DefaultRobotsTTL
	}
	return &robotsCache{http: client, userAgent: userAgent, ttl: ttl}
}

// resolve returns the robots verdict for domain d, using rec as the
// already-loaded domain record (from cache or store). If rec's cached
// robots entry is fresh, it is reused with no network I/O; otherwise a
// single in-flight fetch is shared by all concurrent callers for d, and
// the result is upserted back into store via mutate.
func (c *robotsCache) resolve(
	ctx context.Context,
	store podstore.Store,
	d string,
	rec domain.Record,
) (robotsResult, error) {
	now := time.Now()
	if rec.RobotsFetchedUnix > 0 && now.Unix() < rec.RobotsExpiresUnix {
		return decodeCachedRobots(rec), nil
	}

	v, err, _ := c.group.Do(d, func() (any, error) {
		return c.fetchAndStore(ctx, store, d)
	})
	if err != nil {
		return robotsResult{}, err
	}
	return v.(robotsResult), nil
}

func decodeCachedRobots(rec domain.Record) robotsResult {
	if len(rec.RobotsCachedContent) == 0 {
		return robotsResult{allowAll: true}
	}
	rules, err := robotsparse.Parse(rec.RobotsCachedContent)
	if err != nil {
		return robotsResult{allowAll: true}
	}
	return robotsResult{rules: rules}
}

func (c *robotsCache) fetchAndStore(ctx context.Context, store podstore.Store, d string) (robotsResult, error) {
	body, fetchedOK := c.fetchBody(ctx, d)

	result := robotsResult{allowAll: true}
	if fetchedOK {
		if rules, err := robotsparse.Parse(body); err == nil {
			result = robotsResult{rules: rules}
		}
	}

	now := time.Now()
	crawlDelay := int64(0)
	if result.rules != nil {
		crawlDelay = int64(result.rules.CrawlDelay(c.userAgent).Seconds())
	}

	content := body
	if !fetchedOK {
		content = nil
	}

	_, err := store.MutateDomainRecord(ctx, d, func(r *domain.Record) {
		r.RobotsCachedContent = content
		r.RobotsFetchedUnix = now.Unix()
		r.RobotsExpiresUnix = now.Add(c.ttl).Unix()
		r.RobotsCrawlDelaySec = crawlDelay
	})
	if err != nil {
		return robotsResult{}, fmt.Errorf("politeness: upsert robots cache for %q: %w", d, err)
	}

	return result, nil
}

// fetchBody tries HTTP first, then HTTPS, matching the robots checker's
// scheme fallback. ok is false only when both attempts fail or return a
// non-2xx/404 status that cannot be parsed as rules — callers treat that
// as allow-all.
func (c *robotsCache) fetchBody(ctx context.Context, d string) (body []byte, ok bool) {
	for _, scheme := range []string{"http", "https"} {
		u := (&url.URL{Scheme: scheme, Host: d, Path: robotsTxtPath}).String()
		resp, err := c.http.Get(ctx, u, nil)
		if err != nil {
			continue
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, true
		}
		// A definitive 404 means "no robots.txt": allow all, no further
		// scheme attempts needed.
		if resp.StatusCode == 404 {
			return nil, false
		}
	}
	return nil, false
}
