// Package seen implements the global seen-approximator: a probabilistic
// membership structure over url-fingerprints, hosted by the coordinator
// pod (spec.md §3, §4.7). False positives are allowed (a real URL may be
// dropped); false negatives are not.
package seen

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Config sizes the underlying filter from the expected insertion count
// and the target false-positive rate (spec.md §3: target 10^-3 at >=10^10
// insertions).
type Config struct {
	Capacity  uint   `yaml:"capacity"`
	ErrorRate float64 `yaml:"error_rate"`
}

// DefaultErrorRate matches spec.md §3's stated target.
const DefaultErrorRate = 0.001

// Approximator is the coordinator pod's seen-set. Safe for concurrent
// use: Insert is linearizable per spec.md §5 ("concurrent inserts for the
// same url-fingerprint yield exactly one true").
type Approximator struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// New builds an Approximator sized for cfg.Capacity insertions at
// cfg.ErrorRate false-positive probability.
func New(cfg Config) (*Approximator, error) {
	if cfg.Capacity == 0 {
		return nil, fmt.Errorf("seen: capacity must be > 0")
	}
	rate := cfg.ErrorRate
	if rate <= 0 {
		rate = DefaultErrorRate
	}
	return &Approximator{filter: bloom.NewWithEstimates(cfg.Capacity, rate)}, nil
}

// Contains reports whether fp may already have been inserted. A true
// result can be a false positive; a false result is always accurate.
func (a *Approximator) Contains(fp uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.filter.Test(fpBytes(fp))
}

// Insert adds fp to the set and reports whether it was new (wasNew=true)
// under the lock held for the whole test-then-add, so concurrent callers
// racing on the same fp see exactly one true (spec.md §5).
func (a *Approximator) Insert(fp uint64) (wasNew bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b := fpBytes(fp)
	if a.filter.Test(b) {
		return false
	}
	a.filter.Add(b)
	return true
}

// EstimatedFalsePositiveRate reports the filter's current false-positive
// rate for n, the count of items inserted so far.
func (a *Approximator) EstimatedFalsePositiveRate(n uint) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.filter.EstimateFalsePositiveRate(n)
}

func fpBytes(fp uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], fp)
	return b[:]
}
