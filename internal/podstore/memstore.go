package podstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/northfleet/podcrawl/internal/domain"
)

// MemStore is an in-memory Store, used by frontier/politeness/coordinator
// tests in place of a live Redis endpoint. Semantics mirror RedisStore
// closely enough that a test written against one behaves the same against
// the other; it does not reproduce Redis's network-failure modes.
type MemStore struct {
	mu       sync.Mutex
	domains  map[string]domain.Record
	ready    map[string]float64
	visited  map[uint64]domain.VisitedRecord
	counters map[string]int64
	stopped  bool
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		domains:  make(map[string]domain.Record),
		ready:    make(map[string]float64),
		visited:  make(map[uint64]domain.VisitedRecord),
		counters: make(map[string]int64),
	}
}

func (s *MemStore) GetDomainRecord(_ context.Context, d string) (domain.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.domains[d]
	return rec, ok, nil
}

func (s *MemStore) MutateDomainRecord(_ context.Context, d string, fn func(*domain.Record)) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.domains[d]
	if !ok {
		rec = domain.Record{Domain: d}
	}

	fn(&rec)
	rec.Domain = d
	rec.UpdatedAt = time.Now().UTC()
	s.domains[d] = rec
	return rec, nil
}

// EnqueueReady sets d's ready score to the later of its new eligible time
// and any already-pending one — a domain already cooling down (e.g. from
// a robots Crawl-delay) is never moved earlier by a subsequent enqueue
// (spec.md §8's t2-t1 >= max(crawl_delay, MIN_DELAY) invariant).
func (s *MemStore) EnqueueReady(_ context.Context, d string, eligibleAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := float64(eligibleAt.Unix()) + tiebreak(d)
	if existing, ok := s.ready[d]; ok && existing > score {
		score = existing
	}
	s.ready[d] = score
	return nil
}

func (s *MemStore) PopReady(_ context.Context, now time.Time) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type cand struct {
		d     string
		score float64
	}
	var best *cand
	nowScore := float64(now.Unix())

	candidates := make([]cand, 0, len(s.ready))
	for d, score := range s.ready {
		if score <= nowScore+1 {
			candidates = append(candidates, cand{d, score})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })

	if len(candidates) == 0 {
		return "", false, nil
	}
	best = &candidates[0]
	delete(s.ready, best.d)
	return best.d, true, nil
}

func (s *MemStore) RemoveReady(_ context.Context, d string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ready, d)
	return nil
}

func (s *MemStore) ReadyCount(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return int64(len(s.ready)), nil
}

func (s *MemStore) UpsertVisited(_ context.Context, rec domain.VisitedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.visited[rec.URLFingerprint] = rec
	return nil
}

func (s *MemStore) GetVisited(_ context.Context, fp uint64) (domain.VisitedRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.visited[fp]
	return rec, ok, nil
}

func (s *MemStore) IncrCounter(_ context.Context, name string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[name] += delta
	return s.counters[name], nil
}

func (s *MemStore) GetCounter(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.counters[name], nil
}

func (s *MemStore) SetStopFlag(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	return nil
}

func (s *MemStore) GetStopFlag(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopped, nil
}

func (s *MemStore) Ping(_ context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }
