// Package frontier admits URLs, deduplicates against the seen-
// approximator, enqueues them to the owning pod, and hands the next
// eligible URL to a fetcher (spec.md §4.2). There is no direct teacher
// precedent for a file-backed frontier — the teacher's crawler frontier
// is a Postgres table (internal/database) — so this package is built
// from the spec's own state-machine contract, following the teacher's
// error-wrapping and mutex idioms throughout.
package frontier

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/politeness"
	"github.com/northfleet/podcrawl/internal/registrable"
	"github.com/northfleet/podcrawl/internal/seen"
	"github.com/northfleet/podcrawl/internal/shard"
	"github.com/northfleet/podcrawl/internal/urlnorm"
)

// averageLineLength is a heuristic used only by CountFrontier's
// approximate-size estimate (spec.md §4.2: "Exact counts are not
// required").
const averageLineLength = 80

// AddResult summarizes one AddURLs call.
type AddResult struct {
	Admitted   int
	Duplicates int
}

// Input is one URL offered to AddURLs.
type Input struct {
	URL   string
	Depth int
}

// Frontier is the per-pod frontier: its own fileStore root, its own
// Store, and references to the process-wide Fabric (for cross-pod
// routing) and Seen-approximator (hosted by the coordinator pod but
// shared in-process, since this is a single-host deployment).
type Frontier struct {
	podIndex   int
	store      podstore.Store
	fabric     *shard.Fabric
	seen       *seen.Approximator
	politeness *politeness.Engine
	files      *fileStore
	minDelay   time.Duration
	registry   *Registry
}

// Registry is the process-wide lookup from pod index to that pod's
// Frontier, used to route a cross-pod Add (spec.md §4.2's "cross-pod add
// interface"). In a single-host deployment every pod runs in the same
// process, so routing is a direct call rather than network RPC.
type Registry struct {
	frontiers []*Frontier
}

// NewRegistry builds an empty Registry sized for n pods.
func NewRegistry(n int) *Registry {
	return &Registry{frontiers: make([]*Frontier, n)}
}

// Register associates podIndex with its Frontier. Called once per pod
// at startup, after all Frontiers are constructed.
func (r *Registry) Register(podIndex int, f *Frontier) {
	r.frontiers[podIndex] = f
	f.registry = r
}

func (r *Registry) get(podIndex int) (*Frontier, bool) {
	if podIndex < 0 || podIndex >= len(r.frontiers) || r.frontiers[podIndex] == nil {
		return nil, false
	}
	return r.frontiers[podIndex], true
}

// Config configures a Frontier.
type Config struct {
	DataDir  string        `yaml:"data_dir"`
	MinDelay time.Duration `yaml:"min_delay"`
}

// New builds the Frontier for pod podIndex. politeness must be the
// Engine for the same pod (they share the same Store).
func New(
	podIndex int,
	cfg Config,
	store podstore.Store,
	fabric *shard.Fabric,
	seenApprox *seen.Approximator,
	pol *politeness.Engine,
) *Frontier {
	minDelay := cfg.MinDelay
	if minDelay <= 0 {
		minDelay = politeness.MinDelay
	}
	return &Frontier{
		podIndex:   podIndex,
		store:      store,
		fabric:     fabric,
		seen:       seenApprox,
		politeness: pol,
		files:      newFileStore(cfg.DataDir),
		minDelay:   minDelay,
	}
}

// AddURLs admits a batch of URLs. bypassSeenCheck is used only for seed
// ingestion: it skips the "already seen" drop but still records the URL
// in the seen-approximator, so later non-seed duplicates of the same
// seed are caught.
func (f *Frontier) AddURLs(ctx context.Context, inputs []Input, bypassSeenCheck bool) (AddResult, error) {
	var result AddResult

	for _, in := range inputs {
		admitted, err := f.addOne(ctx, in, bypassSeenCheck)
		if err != nil {
			return result, err
		}
		if admitted {
			result.Admitted++
		} else {
			result.Duplicates++
		}
	}
	return result, nil
}

func (f *Frontier) addOne(ctx context.Context, in Input, bypassSeenCheck bool) (admitted bool, err error) {
	canonical, err := urlnorm.Canonicalize(in.URL)
	if err != nil {
		return false, fmt.Errorf("frontier: canonicalize %q: %w", in.URL, err)
	}

	host, err := hostOf(canonical)
	if err != nil {
		return false, fmt.Errorf("frontier: extract host from %q: %w", canonical, err)
	}
	regDomain, err := registrable.Of(host)
	if err != nil {
		return false, fmt.Errorf("frontier: registrable domain of %q: %w", host, err)
	}

	ownerIdx := shard.PodOf(regDomain, f.fabric.N())
	if ownerIdx != f.podIndex {
		owner, err := f.fabric.Pod(ownerIdx)
		if err != nil {
			return false, err
		}
		return f.routeCrossPod(ctx, owner.Index, canonical, regDomain, in.Depth, bypassSeenCheck)
	}

	fp := urlnorm.Fingerprint(canonical)

	if !bypassSeenCheck {
		if !f.seen.Insert(fp) {
			return false, nil // already seen: duplicate, dropped
		}
	} else {
		f.seen.Insert(fp)
	}

	if err := f.files.append(f.podIndex, regDomain, []domain.FrontierEntry{{URL: canonical, Depth: in.Depth}}); err != nil {
		return false, fmt.Errorf("frontier: append to %q frontier file: %w", regDomain, err)
	}

	if err := f.ensureReady(ctx, regDomain, bypassSeenCheck); err != nil {
		return false, err
	}

	return true, nil
}

// ensureReady makes sure regDomain is present in the ready-domains
// queue with next_fetch_eligible_ts = max(existing, last_scheduled +
// max(robots_crawl_delay, min_delay)), and marks it seeded when isSeed
// is true. Uses politeness.DelayFor, not the bare min_delay, so a
// domain's robots Crawl-delay isn't silently shortened back to
// min_delay by the next ordinary link discovery on it.
func (f *Frontier) ensureReady(ctx context.Context, regDomain string, isSeed bool) error {
	rec, err := f.store.MutateDomainRecord(ctx, regDomain, func(r *domain.Record) {
		if isSeed {
			r.IsSeeded = true
		}
	})
	if err != nil {
		return fmt.Errorf("frontier: upsert domain record for %q: %w", regDomain, err)
	}

	delay, err := f.politeness.DelayFor(ctx, regDomain)
	if err != nil {
		return fmt.Errorf("frontier: politeness delay for %q: %w", regDomain, err)
	}

	eligible := time.Unix(rec.LastScheduledFetchUnix, 0).Add(delay)
	now := time.Now()
	if eligible.Before(now) {
		eligible = now
	}

	if err := f.store.EnqueueReady(ctx, regDomain, eligible); err != nil {
		return fmt.Errorf("frontier: enqueue ready %q: %w", regDomain, err)
	}
	return nil
}

// routeCrossPod hands the add off to the owning pod's Frontier via the
// shared in-process Registry. A genuinely distributed deployment would
// make this an RPC; a single-host process can call straight through.
func (f *Frontier) routeCrossPod(ctx context.Context, ownerIdx int, canonicalURL, regDomain string, depth int, bypassSeenCheck bool) (bool, error) {
	owner, ok := f.registry.get(ownerIdx)
	if !ok {
		return false, fmt.Errorf("frontier: no registered frontier for pod %d", ownerIdx)
	}
	result, err := owner.AddURLs(ctx, []Input{{URL: canonicalURL, Depth: depth}}, bypassSeenCheck)
	if err != nil {
		return false, err
	}
	return result.Admitted > 0, nil
}

// GetNextURL pops the next eligible URL for this pod. ok is false if no
// domain is currently ready; callers (fetcher workers) retry after a
// short sleep, matching spec.md §4.4's pop-or-backoff loop.
func (f *Frontier) GetNextURL(ctx context.Context) (entry domain.FrontierEntry, dom string, ok bool, err error) {
	now := time.Now()

	for {
		dom, popped, err := f.store.PopReady(ctx, now)
		if err != nil {
			return domain.FrontierEntry{}, "", false, fmt.Errorf("frontier: pop ready: %w", err)
		}
		if !popped {
			return domain.FrontierEntry{}, "", false, nil
		}

		rec, recOK, err := f.store.GetDomainRecord(ctx, dom)
		if err != nil {
			return domain.FrontierEntry{}, "", false, fmt.Errorf("frontier: get domain record %q: %w", dom, err)
		}
		offset := int64(0)
		if recOK {
			offset = rec.FrontierOffset
		}

		line, nextOffset, hasMore, err := f.files.readLineAt(f.podIndex, dom, offset)
		if err != nil {
			return domain.FrontierEntry{}, "", false, fmt.Errorf("frontier: read line for %q: %w", dom, err)
		}
		if line.URL == "" && nextOffset == offset {
			// File has no further complete line right now: the domain
			// was enqueued but has nothing to read yet (or a writer is
			// mid-append). Drop it from ready; the next AddURLs for
			// this domain will re-insert it.
			if err := f.store.RemoveReady(ctx, dom); err != nil {
				return domain.FrontierEntry{}, "", false, fmt.Errorf("frontier: remove ready %q: %w", dom, err)
			}
			continue
		}

		if err := f.advance(ctx, dom, nextOffset, hasMore); err != nil {
			return domain.FrontierEntry{}, "", false, err
		}

		return line, dom, true, nil
	}
}

func (f *Frontier) advance(ctx context.Context, dom string, nextOffset int64, hasMore bool) error {
	now := time.Now()
	_, err := f.store.MutateDomainRecord(ctx, dom, func(r *domain.Record) {
		r.FrontierOffset = nextOffset
	})
	if err != nil {
		return fmt.Errorf("frontier: advance offset for %q: %w", dom, err)
	}

	if !hasMore {
		return nil // Idle: no re-enqueue, per the domain state machine.
	}

	delay, err := f.politeness.DelayFor(ctx, dom)
	if err != nil {
		return fmt.Errorf("frontier: politeness delay for %q: %w", dom, err)
	}
	if err := f.store.EnqueueReady(ctx, dom, now.Add(delay)); err != nil {
		return fmt.Errorf("frontier: re-enqueue %q: %w", dom, err)
	}
	return nil
}

// CountFrontier approximates the number of unread URLs across every
// domain this pod owns (spec.md §4.2: exact counts are not required).
func (f *Frontier) CountFrontier(podIndex int) (int64, error) {
	domains, err := f.files.listDomains(podIndex)
	if err != nil {
		return 0, fmt.Errorf("frontier: list domains: %w", err)
	}

	var total int64
	for _, dom := range domains {
		size, err := f.files.size(podIndex, dom)
		if err != nil {
			return 0, err
		}

		rec, ok, err := f.store.GetDomainRecord(context.Background(), dom)
		if err != nil {
			return 0, err
		}
		offset := int64(0)
		if ok {
			offset = rec.FrontierOffset
		}

		if remaining := size - offset; remaining > 0 {
			total += remaining / averageLineLength
		}
	}
	return total, nil
}

// Resume rebuilds the ready-domains queue from persisted offsets and
// file sizes at startup (spec.md §4.2). Domains with no unread bytes
// remain Idle; domains with unread bytes and a missing domain record
// are treated as never-scheduled (eligible now).
func (f *Frontier) Resume(ctx context.Context) error {
	domains, err := f.files.listDomains(f.podIndex)
	if err != nil {
		return fmt.Errorf("frontier: resume: list domains: %w", err)
	}

	for _, dom := range domains {
		size, err := f.files.size(f.podIndex, dom)
		if err != nil {
			return err
		}

		rec, ok, err := f.store.GetDomainRecord(ctx, dom)
		if err != nil {
			return fmt.Errorf("frontier: resume: get domain record %q: %w", dom, err)
		}
		offset := int64(0)
		eligible := time.Now()
		if ok {
			offset = rec.FrontierOffset
			delay, err := f.politeness.DelayFor(ctx, dom)
			if err != nil {
				return fmt.Errorf("frontier: resume: politeness delay for %q: %w", dom, err)
			}
			eligible = time.Unix(rec.LastScheduledFetchUnix, 0).Add(delay)
		}

		if size-offset <= 0 {
			continue // Idle: nothing unread.
		}
		if err := f.store.EnqueueReady(ctx, dom, eligible); err != nil {
			return fmt.Errorf("frontier: resume: enqueue ready %q: %w", dom, err)
		}
	}
	return nil
}

func hostOf(canonicalURL string) (string, error) {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("no host in url %q", canonicalURL)
	}
	return u.Host, nil
}
