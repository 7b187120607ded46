// Package shard implements the two sharding functions that route work
// across the fabric: pod_of, which assigns a registrable domain to its
// exclusive owning pod, and content_dir_of, which assigns a URL's stored
// content to one of M on-disk directories independently of pod ownership
// (spec.md §2, §4.1).
package shard

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/registrable"
)

// PodOf returns the index in [0, n) of the pod that exclusively owns
// registrableDomain. n must be > 0.
func PodOf(registrableDomain string, n int) int {
	if n <= 0 {
		panic("shard: PodOf called with n <= 0")
	}
	return int(xxhash.Sum64String(registrableDomain) % uint64(n))
}

// ContentDirOf returns the index in [0, m) of the content-store shard a
// normalized URL's stored body belongs in. This hash is independent of
// PodOf: a domain's pages are scattered across the content shards evenly
// regardless of which pod owns the domain (spec.md §4.1).
func ContentDirOf(normalizedURL string, m int) int {
	if m <= 0 {
		panic("shard: ContentDirOf called with m <= 0")
	}
	sum := sha256.Sum256([]byte(normalizedURL))
	prefix := binary.BigEndian.Uint32(sum[:4])
	return int(prefix % uint32(m))
}

// PodHandle is the pair of identifiers a caller needs to address one
// pod: its index and its owned Store.
type PodHandle struct {
	Index int
	Store podstore.Store
}

// Fabric is the handle registry: one Store per pod, addressed by index.
// A Fabric is built once at startup from the pods[] config list and
// shared read-only by every fetcher/parser goroutine in the process.
type Fabric struct {
	pods []PodHandle
}

// NewFabric wraps an already-constructed, index-ordered slice of
// podstore.Store. Index i in stores must be the Store for pod i.
func NewFabric(stores []podstore.Store) *Fabric {
	pods := make([]PodHandle, len(stores))
	for i, s := range stores {
		pods[i] = PodHandle{Index: i, Store: s}
	}
	return &Fabric{pods: pods}
}

// N returns the number of pods in the fabric.
func (f *Fabric) N() int { return len(f.pods) }

// PodForDomain resolves a registrable domain to its owning pod handle.
func (f *Fabric) PodForDomain(registrableDomain string) (PodHandle, error) {
	if len(f.pods) == 0 {
		return PodHandle{}, fmt.Errorf("shard: fabric has no pods")
	}
	return f.pods[PodOf(registrableDomain, len(f.pods))], nil
}

// PodForHost resolves a host (not necessarily already reduced to its
// registrable domain) to its owning pod handle.
func (f *Fabric) PodForHost(host string) (PodHandle, error) {
	reg, err := registrable.Of(host)
	if err != nil {
		return PodHandle{}, fmt.Errorf("shard: registrable domain of %q: %w", host, err)
	}
	return f.PodForDomain(reg)
}

// Pod returns the handle for pod index i.
func (f *Fabric) Pod(i int) (PodHandle, error) {
	if i < 0 || i >= len(f.pods) {
		return PodHandle{}, fmt.Errorf("shard: pod index %d out of range [0,%d)", i, len(f.pods))
	}
	return f.pods[i], nil
}

// All returns every pod handle, in index order.
func (f *Fabric) All() []PodHandle {
	return f.pods
}
