// Package politeness decides whether a URL is permitted and when a
// domain is eligible to be fetched again (spec.md §4.3). It fronts the
// per-pod Store with a bounded in-memory cache and guards robots.txt
// fetches with a per-domain singleflight group so at most one network
// fetch per domain is ever in flight.
package politeness

import (
	"context"
	"fmt"
	"time"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/httpfetch"
	"github.com/northfleet/podcrawl/internal/podstore"
)

// MinDelay is the default minimum re-crawl delay per spec.md §4.3.
const MinDelay = 70 * time.Second

// Config configures an Engine.
type Config struct {
	CacheSize       int           `yaml:"cache_size"`
	RobotsCacheTTL  time.Duration `yaml:"robots_cache_ttl"`
	MinDelay        time.Duration `yaml:"min_delay"`
	SeededURLsOnly  bool          `yaml:"seeded_urls_only"`
	UserAgent       string        `yaml:"user_agent"`
}

// Engine is the per-pod politeness gate. One Engine per pod, shared by
// every fetcher goroutine in that pod's worker set.
type Engine struct {
	store      podstore.Store
	records    *recordCache
	robots     *robotsCache
	minDelay   time.Duration
	seededOnly bool
}

// New builds an Engine backed by store, the pod's owned Store.
func New(cfg Config, store podstore.Store, httpClient *httpfetch.Client) (*Engine, error) {
	records, err := newRecordCache(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("politeness: build record cache: %w", err)
	}

	minDelay := cfg.MinDelay
	if minDelay <= 0 {
		minDelay = MinDelay
	}

	return &Engine{
		store:      store,
		records:    records,
		robots:     newRobotsCache(httpClient, cfg.UserAgent, cfg.RobotsCacheTTL),
		minDelay:   minDelay,
		seededOnly: cfg.SeededURLsOnly,
	}, nil
}

// loadRecord returns domain d's record, consulting the in-process cache
// before falling back to the store.
func (e *Engine) loadRecord(ctx context.Context, d string) (domain.Record, error) {
	if rec, ok := e.records.get(d); ok {
		return rec, nil
	}

	rec, ok, err := e.store.GetDomainRecord(ctx, d)
	if err != nil {
		return domain.Record{}, fmt.Errorf("politeness: load domain record %q: %w", d, err)
	}
	if !ok {
		rec = domain.Record{Domain: d}
	}
	e.records.set(d, rec)
	return rec, nil
}

// IsURLAllowed resolves the manual-exclusion flag, the seeded-only mode,
// and the robots verdict for rawURL in domain d. Caller must already have
// resolved d to this pod (spec.md §4.3: "must equal caller's pod").
func (e *Engine) IsURLAllowed(ctx context.Context, d, rawURL, path string) (bool, error) {
	rec, err := e.loadRecord(ctx, d)
	if err != nil {
		return false, err
	}

	if rec.IsManuallyExcluded {
		return false, nil
	}
	if e.seededOnly && !rec.IsSeeded {
		return false, nil
	}

	result, err := e.robots.resolve(ctx, e.store, d, rec)
	if err != nil {
		return false, err
	}
	e.records.invalidate(d) // robots.resolve may have mutated the stored record

	if result.allowAll {
		return true, nil
	}
	return result.rules.Allows(e.robots.userAgent, path), nil
}

// CanFetchNow reports whether domain d's cooldown has elapsed:
// now >= last_scheduled_fetch_ts + max(robots_crawl_delay, MinDelay).
func (e *Engine) CanFetchNow(ctx context.Context, d string, now time.Time) (bool, error) {
	rec, err := e.loadRecord(ctx, d)
	if err != nil {
		return false, err
	}

	delay := e.minDelay
	if robotsDelay := time.Duration(rec.RobotsCrawlDelaySec) * time.Second; robotsDelay > delay {
		delay = robotsDelay
	}

	eligible := time.Unix(rec.LastScheduledFetchUnix, 0).Add(delay)
	return !now.Before(eligible), nil
}

// DelayFor returns max(robots_crawl_delay, MinDelay) for domain d, the
// politeness_delay the frontier applies when re-enqueuing after a pop
// (spec.md §4.2 "Get next URL").
func (e *Engine) DelayFor(ctx context.Context, d string) (time.Duration, error) {
	rec, err := e.loadRecord(ctx, d)
	if err != nil {
		return 0, err
	}

	delay := e.minDelay
	if robotsDelay := time.Duration(rec.RobotsCrawlDelaySec) * time.Second; robotsDelay > delay {
		delay = robotsDelay
	}
	return delay, nil
}

// RecordFetchAttempt upserts last_scheduled_fetch_ts = now for d.
func (e *Engine) RecordFetchAttempt(ctx context.Context, d string, now time.Time) error {
	rec, err := e.store.MutateDomainRecord(ctx, d, func(r *domain.Record) {
		r.LastScheduledFetchUnix = now.Unix()
	})
	if err != nil {
		return fmt.Errorf("politeness: record fetch attempt for %q: %w", d, err)
	}
	e.records.set(d, rec)
	return nil
}

// LoadManualExclusions bulk-upserts the exclusion flag for each listed
// domain. Called once at pod startup (spec.md §4.3).
func (e *Engine) LoadManualExclusions(ctx context.Context, domains []string) error {
	for _, d := range domains {
		rec, err := e.store.MutateDomainRecord(ctx, d, func(r *domain.Record) {
			r.IsManuallyExcluded = true
		})
		if err != nil {
			return fmt.Errorf("politeness: load manual exclusion for %q: %w", d, err)
		}
		e.records.set(d, rec)
	}
	return nil
}
