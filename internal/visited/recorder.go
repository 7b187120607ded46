// Package visited is the boundary between the Visited record's domain
// meaning — the authoritative "have we stored this?" row keyed by
// url-fingerprint (spec.md §3) — and the pod store that persists it.
// Grounded on the teacher's internal/database repository shape: a narrow
// struct wrapping one storage dependency, one method per operation,
// domain types passed through unchanged.
package visited

import (
	"context"
	"fmt"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/urlnorm"
)

// Recorder upserts and looks up Visited records against one pod's store.
// A domain's Visited records live in the same pod that owns the
// domain's frontier (SPEC_FULL.md §3's Open Question resolution), so a
// Recorder is always constructed over that pod's own Store.
type Recorder struct {
	store podstore.Store
}

// New builds a Recorder over store.
func New(store podstore.Store) *Recorder {
	return &Recorder{store: store}
}

// Upsert writes rec, keyed by its URLFingerprint. Idempotent: replaying
// a parse for the same fingerprint overwrites the stored fields, except
// that CrawledAt never moves backward (spec.md §4.5 "Idempotence").
func (r *Recorder) Upsert(ctx context.Context, rec domain.VisitedRecord) error {
	prev, ok, err := r.store.GetVisited(ctx, rec.URLFingerprint)
	if err != nil {
		return fmt.Errorf("visited: upsert %q: %w", rec.URL, err)
	}
	if ok && prev.CrawledAt.After(rec.CrawledAt) {
		rec.CrawledAt = prev.CrawledAt
	}
	if err := r.store.UpsertVisited(ctx, rec); err != nil {
		return fmt.Errorf("visited: upsert %q: %w", rec.URL, err)
	}
	return nil
}

// Get returns the Visited record for a canonicalized URL, or ok=false if
// the URL has never been recorded.
func (r *Recorder) Get(ctx context.Context, canonicalURL string) (domain.VisitedRecord, bool, error) {
	return r.GetByFingerprint(ctx, urlnorm.Fingerprint(canonicalURL))
}

// GetByFingerprint returns the Visited record for an already-computed
// url-fingerprint.
func (r *Recorder) GetByFingerprint(ctx context.Context, fp uint64) (domain.VisitedRecord, bool, error) {
	rec, ok, err := r.store.GetVisited(ctx, fp)
	if err != nil {
		return domain.VisitedRecord{}, false, fmt.Errorf("visited: get fingerprint %d: %w", fp, err)
	}
	return rec, ok, nil
}
