// Package coordinator implements the Global Coordinator (spec.md §4.7):
// it holds the process-wide counters and stop flag on the designated
// coordination pod's store, hosts the seen-approximator, and evaluates
// the stopping criteria (max pages, max wall-clock duration, operator
// request). Grounded on the teacher's internal/worker HealthMonitor: a
// ticker-driven background loop that polls state and flips a status,
// adapted here to poll counters and flip the stop flag.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/northfleet/podcrawl/internal/logging"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/seen"
)

// Global counter names, shared with internal/parser.
const (
	CounterPagesCrawled  = "pages_crawled_total"
	CounterBytesFetched  = "bytes_fetched_total"
	CounterPagesInterval = "pages_in_interval"
)

// pollInterval is how often the coordinator re-evaluates stopping
// criteria. Pods must observe the stop flag within 1s (spec.md §4.7);
// polling at a fraction of that budget leaves margin for propagation.
const pollInterval = 500 * time.Millisecond

// Config bounds a crawl run. Zero values disable the corresponding
// stopping criterion.
type Config struct {
	MaxPages    int64
	MaxDuration time.Duration
}

// Coordinator owns the designated coordination pod's store and the
// process-wide seen-approximator.
type Coordinator struct {
	store     podstore.Store
	seenApprox *seen.Approximator
	cfg       Config
	startedAt time.Time
	log       logging.Logger
}

// New builds a Coordinator over the coordination pod's store.
func New(store podstore.Store, seenApprox *seen.Approximator, cfg Config, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NewNop()
	}
	return &Coordinator{
		store:      store,
		seenApprox: seenApprox,
		cfg:        cfg,
		startedAt:  time.Now(),
		log:        log,
	}
}

// Store returns the coordination pod's store, for wiring into parsers
// as their CounterIncrementer.
func (c *Coordinator) Store() podstore.Store { return c.store }

// Seen returns the process-wide seen-approximator.
func (c *Coordinator) Seen() *seen.Approximator { return c.seenApprox }

// Stopped reports whether the stop flag is set. Satisfies the fetcher
// package's StopSignal interface.
func (c *Coordinator) Stopped(ctx context.Context) bool {
	stopped, err := c.store.GetStopFlag(ctx)
	if err != nil {
		c.log.Error("read stop flag failed", logging.Err(err))
		return false
	}
	return stopped
}

// RequestStop sets the stop flag directly, for an operator-initiated
// shutdown (spec.md §4.7 "operator request").
func (c *Coordinator) RequestStop(ctx context.Context) error {
	if err := c.store.SetStopFlag(ctx); err != nil {
		return fmt.Errorf("coordinator: request stop: %w", err)
	}
	c.log.Info("stop requested by operator")
	return nil
}

// PagesCrawled returns the current value of pages_crawled_total.
func (c *Coordinator) PagesCrawled(ctx context.Context) (int64, error) {
	n, err := c.store.GetCounter(ctx, CounterPagesCrawled)
	if err != nil {
		return 0, fmt.Errorf("coordinator: pages crawled: %w", err)
	}
	return n, nil
}

// checkStoppingCriteria evaluates spec.md §4.7's stopping criteria and
// sets the stop flag if any is met. Returns true if it set the flag on
// this call (false if already stopped, or no criterion is met yet).
func (c *Coordinator) checkStoppingCriteria(ctx context.Context) (bool, error) {
	if already, err := c.store.GetStopFlag(ctx); err != nil {
		return false, fmt.Errorf("coordinator: read stop flag: %w", err)
	} else if already {
		return false, nil
	}

	if c.cfg.MaxPages > 0 {
		pages, err := c.PagesCrawled(ctx)
		if err != nil {
			return false, err
		}
		if pages >= c.cfg.MaxPages {
			return true, c.trip(ctx, "max_pages reached", "pages_crawled", pages)
		}
	}

	if c.cfg.MaxDuration > 0 && time.Since(c.startedAt) >= c.cfg.MaxDuration {
		return true, c.trip(ctx, "max_duration reached", "elapsed", time.Since(c.startedAt).String())
	}

	return false, nil
}

func (c *Coordinator) trip(ctx context.Context, reason string, field string, value any) error {
	if err := c.store.SetStopFlag(ctx); err != nil {
		return fmt.Errorf("coordinator: set stop flag: %w", err)
	}
	c.log.Info(reason, logging.String(field, fmt.Sprint(value)))
	return nil
}

// Run polls the stopping criteria until ctx is cancelled or the stop
// flag is set.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tripped, err := c.checkStoppingCriteria(ctx)
			if err != nil {
				c.log.Error("check stopping criteria failed", logging.Err(err))
				continue
			}
			if tripped {
				return
			}
		}
	}
}
