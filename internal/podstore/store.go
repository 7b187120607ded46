// Package podstore implements the per-pod KV store: the domain record,
// the ready-domains queue, the visited record, and — for the one pod
// designated as the global coordination pod — the global counters and
// stop flag (spec.md §3, §4.7). Each pod owns exactly one Store instance
// backed by one Redis endpoint; cross-pod calls always go through the
// owning pod's Frontier/Politeness API, never through another pod's
// Store directly (spec.md §5 "Shared-resource policy").
package podstore

import (
	"context"
	"errors"
	"time"

	"github.com/northfleet/podcrawl/internal/domain"
)

// ErrShardUnavailable is returned when the underlying store cannot be
// reached. Callers surface this as spec.md §4.1's ShardUnavailable.
var ErrShardUnavailable = errors.New("podstore: shard unavailable")

// ErrNotFound names the "no row" condition. The Store methods do not
// return it: lookups report a missing row with ok=false.
var ErrNotFound = errors.New("podstore: not found")

// Store is the per-pod KV interface. A concrete Store is never shared
// between pods.
type Store interface {
	// GetDomainRecord returns the domain's record, or ok=false if the
	// domain has never been seen by this pod (treated as never-scheduled,
	// eligible now — spec.md §4.2 "Resume").
	GetDomainRecord(ctx context.Context, d string) (rec domain.Record, ok bool, err error)

	// MutateDomainRecord reads the current record (zero value if absent),
	// applies fn, and writes the result back. The pod process serializes
	// mutation of a given domain in-process, so this need not be
	// transactional against other writers.
	MutateDomainRecord(ctx context.Context, d string, fn func(*domain.Record)) (domain.Record, error)

	// EnqueueReady inserts or updates domain d in the ready-domains queue
	// with the given eligibility time. Ties are broken by a stable,
	// domain-derived sub-second offset (spec.md §4.2).
	EnqueueReady(ctx context.Context, d string, eligibleAt time.Time) error

	// PopReady returns the domain with the smallest eligible time that is
	// <= now, removing it from the queue (Ready -> Claimed transition).
	// ok is false if no domain is currently eligible.
	PopReady(ctx context.Context, now time.Time) (d string, ok bool, err error)

	// RemoveReady removes a domain from the ready queue unconditionally
	// (used when a domain's file runs dry with no further unread lines).
	RemoveReady(ctx context.Context, d string) error

	// ReadyCount returns the number of domains currently in the ready
	// queue (eligible or cooling).
	ReadyCount(ctx context.Context) (int64, error)

	// UpsertVisited writes (or overwrites) the visited record for a
	// url-fingerprint, replacing every stored field with rec's.
	UpsertVisited(ctx context.Context, rec domain.VisitedRecord) error

	// GetVisited returns the visited record for a url-fingerprint.
	GetVisited(ctx context.Context, fp uint64) (rec domain.VisitedRecord, ok bool, err error)

	// IncrCounter atomically adds delta to a named global counter and
	// returns the new value. Used only by the coordinator pod.
	IncrCounter(ctx context.Context, name string, delta int64) (int64, error)

	// GetCounter returns the current value of a named global counter.
	GetCounter(ctx context.Context, name string) (int64, error)

	// SetStopFlag sets the global stop flag. Used only by the coordinator
	// pod.
	SetStopFlag(ctx context.Context) error

	// GetStopFlag returns whether the global stop flag is set.
	GetStopFlag(ctx context.Context) (bool, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the store's underlying connection.
	Close() error
}
