// Package orchestrator wires every pod's collaborators together and
// supervises the process lifecycle: worker pools, CPU pinning, and
// graceful shutdown (spec.md §4.8). Grounded on the teacher's
// internal/worker.Pool start/drain state machine, generalized from one
// job-processing pool to podcrawl's per-pod fetcher + parser pools plus
// the single process-wide coordinator and metrics server.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/northfleet/podcrawl/internal/config"
	"github.com/northfleet/podcrawl/internal/contentstore"
	"github.com/northfleet/podcrawl/internal/coordinator"
	"github.com/northfleet/podcrawl/internal/fetcher"
	"github.com/northfleet/podcrawl/internal/frontier"
	"github.com/northfleet/podcrawl/internal/httpfetch"
	"github.com/northfleet/podcrawl/internal/logging"
	"github.com/northfleet/podcrawl/internal/metrics"
	"github.com/northfleet/podcrawl/internal/parser"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/politeness"
	"github.com/northfleet/podcrawl/internal/seen"
	"github.com/northfleet/podcrawl/internal/shard"
	"github.com/northfleet/podcrawl/internal/visited"
)

// drainTimeout bounds how long waitDrain waits for the pool goroutines
// to return after the run context is cancelled. Parser workers return on
// cancellation; tasks still in a parse queue at that point are not
// processed.
const drainTimeout = 30 * time.Second

// StoreOpener builds the podstore.Store for one pod's kv_url. Injected
// so tests can substitute podstore.NewMemStore without a real Redis.
type StoreOpener func(kvURL string) (podstore.Store, error)

// Options carries the run-level settings spec.md §6 takes as CLI flags
// rather than YAML config: the operator contact email appended to the
// user agent, whether to fetch only URLs on seeded domains, and the
// stopping criteria.
type Options struct {
	ContactEmail   string
	SeededURLsOnly bool
	Stop           coordinator.Config
}

// pod bundles one pod's fully-wired collaborators.
type pod struct {
	index      int
	store      podstore.Store
	frontier   *frontier.Frontier
	politeness *politeness.Engine
	queue      *fetcher.ParseQueue
	fetchers   []*fetcher.Worker
	parserPool *parser.Pool
}

// Orchestrator owns every pod, the shared content store, the
// coordinator, and the metrics server for one podcrawl process.
type Orchestrator struct {
	cfg          *config.Config
	pods         []*pod
	fabric       *shard.Fabric
	seenApprox   *seen.Approximator
	content      *contentstore.Store
	coord        *coordinator.Coordinator
	metricsReg   *metrics.Registry
	metricsSrv   *metrics.Server
	snapshotPath string
	log          logging.Logger
	wg           sync.WaitGroup
	cancelRun    context.CancelFunc
}

// seenSnapshotPath derives the seen-approximator's on-disk snapshot path
// from log_dir; spec.md's YAML schema has no dedicated field for it.
func seenSnapshotPath(logDir string) string {
	return filepath.Join(logDir, "seen.snapshot")
}

// New builds an Orchestrator: dials every pod's store, constructs the
// shared fabric/content-store/seen-approximator, and wires each pod's
// frontier, politeness engine, fetcher workers, and parser pool.
func New(cfg *config.Config, opts Options, open StoreOpener, log logging.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("automaxprocs: failed to set GOMAXPROCS", logging.Err(err))
	}

	stores := make([]podstore.Store, len(cfg.Pods))
	for i, p := range cfg.Pods {
		store, err := open(p.KVURL)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: open pod %d store: %w", i, err)
		}
		stores[i] = store
	}

	fabric := shard.NewFabric(stores)

	seenApprox, err := seen.New(seen.Config{Capacity: cfg.SeenCapacity, ErrorRate: cfg.SeenErrorRate})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build seen approximator: %w", err)
	}

	content, err := contentstore.New(cfg.DataDirs)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build content store: %w", err)
	}

	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("orchestrator: create log dir: %w", err)
	}

	snapshotPath := seenSnapshotPath(cfg.LogDir)
	if _, statErr := os.Stat(snapshotPath); statErr == nil {
		if err := seenApprox.LoadSnapshot(snapshotPath); err != nil {
			log.Warn("seen-approximator snapshot load failed, starting empty", logging.Err(err))
		}
	}

	httpClient := httpfetch.New(httpfetch.Config{
		UserAgent:    "podcrawl/1.0",
		ContactEmail: opts.ContactEmail,
		Timeout:      cfg.HTTPTimeout(),
	})

	registry := frontier.NewRegistry(len(cfg.Pods))
	pods := make([]*pod, len(cfg.Pods))

	for i := range cfg.Pods {
		store := stores[i]

		pol, err := politeness.New(politeness.Config{
			CacheSize:      politeness.DefaultCacheSize,
			RobotsCacheTTL: cfg.RobotsCacheTTL(),
			MinDelay:       cfg.PolitenessDelay(),
			SeededURLsOnly: opts.SeededURLsOnly,
			UserAgent:      "podcrawl/1.0",
		}, store, httpClient)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: build politeness engine for pod %d: %w", i, err)
		}

		f := frontier.New(i, frontier.Config{
			DataDir:  filepath.Join(cfg.LogDir, "frontiers", fmt.Sprintf("pod-%d", i)),
			MinDelay: cfg.PolitenessDelay(),
		}, store, fabric, seenApprox, pol)
		registry.Register(i, f)

		queue := fetcher.NewParseQueue(cfg.ParseQueueSoftLimit, cfg.ParseQueueHardLimit)

		pods[i] = &pod{
			index:      i,
			store:      store,
			frontier:   f,
			politeness: pol,
			queue:      queue,
		}
	}

	coord := coordinator.New(stores[cfg.GlobalCoordinationPod], seenApprox, opts.Stop, log)

	metricsReg := metrics.New()
	var metricsSrv *metrics.Server
	if cfg.EnablePrometheus {
		metricsSrv = metrics.NewServer(fmt.Sprintf(":%d", cfg.PrometheusPort), metricsReg, log)
	}

	o := &Orchestrator{
		cfg:          cfg,
		pods:         pods,
		fabric:       fabric,
		seenApprox:   seenApprox,
		content:      content,
		coord:        coord,
		metricsReg:   metricsReg,
		metricsSrv:   metricsSrv,
		snapshotPath: snapshotPath,
		log:          log,
	}

	for i, p := range pods {
		p.fetchers = make([]*fetcher.Worker, cfg.FetchersPerPod)
		for w := 0; w < cfg.FetchersPerPod; w++ {
			p.fetchers[w] = fetcher.NewWorker(w, fetcher.Deps{
				Frontier:   p.frontier,
				Politeness: p.politeness,
				Requeue:    p.store,
				Stop:       coord,
				HTTP:       httpClient,
				Queue:      p.queue,
				Log:        log.With(logging.Int("pod", i)),
			})
		}

		prs := parser.New(parser.Deps{
			Content:    content,
			Visited:    visited.New(p.store),
			LinkRouter: p.frontier,
			Counters:   stores[cfg.GlobalCoordinationPod],
			Extract:    parser.DefaultExtractor(),
			Log:        log.With(logging.Int("pod", i)),
		})
		p.parserPool = parser.NewPool(prs, p.queue, cfg.ParsersPerPod, log.With(logging.Int("pod", i)))
	}

	return o, nil
}

// Run starts every pod's fetcher and parser pools, the coordinator's
// stopping-criteria poller, and (if enabled) the metrics server. It
// blocks until ctx is cancelled or the coordinator trips a stopping
// criterion, then drains and returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelRun = cancel
	defer cancel()

	if o.metricsSrv != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if err := o.metricsSrv.Run(runCtx); err != nil {
				o.log.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.coord.Run(runCtx)
		// The coordinator tripping a stopping criterion (or ctx being
		// cancelled) both mean "stop everything" — cancel runCtx so
		// every worker's Stopped(ctx) check and ctx.Done() select fire.
		cancel()
	}()

	for _, p := range o.pods {
		o.runPod(runCtx, p)
	}

	<-runCtx.Done()
	o.waitDrain()
	return nil
}

func (o *Orchestrator) runPod(ctx context.Context, p *pod) {
	var plan Plan
	if o.cfg.EnableCPUAffinity {
		plan = PlanFor(p.index, o.cfg.CoresPerPod, o.cfg.FetchersPerPod)
	}

	for _, w := range p.fetchers {
		worker := w
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			if o.cfg.EnableCPUAffinity {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				if err := pinCurrentThread(plan.FetcherCores); err != nil {
					o.log.Warn("cpu pinning failed", logging.Err(err))
				}
			}
			worker.Run(ctx)
		}()
	}

	if o.cfg.EnableCPUAffinity {
		cores := plan.ParserCores
		p.parserPool.SetOnStart(func() {
			runtime.LockOSThread()
			if err := pinCurrentThread(cores); err != nil {
				o.log.Warn("cpu pinning failed", logging.Err(err))
			}
		})
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		p.parserPool.Run(ctx)
	}()
}

// waitDrain waits up to drainTimeout for every pool goroutine to
// return, then gives up (spec.md §4.8's "bounded" drain).
func (o *Orchestrator) waitDrain() {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.log.Info("orchestrator drained cleanly")
	case <-time.After(drainTimeout):
		o.log.Warn("orchestrator drain timeout exceeded")
	}

	if err := o.seenApprox.Snapshot(o.snapshotPath); err != nil {
		o.log.Warn("seen-approximator snapshot save failed", logging.Err(err))
	}
}

// Stop requests a graceful shutdown: it sets the stop flag (observed by
// every worker within one coordinator poll interval) and cancels the run
// context directly, rather than waiting for the next poll tick.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if err := o.coord.RequestStop(ctx); err != nil {
		return err
	}
	if o.cancelRun != nil {
		o.cancelRun()
	}
	return nil
}

// Coordinator exposes the process-wide coordinator, for cmd/podcrawl to
// report final counters after Run returns.
func (o *Orchestrator) Coordinator() *coordinator.Coordinator { return o.coord }

// Resume rebuilds every pod's ready-domains queue from persisted
// frontier offsets (spec.md §4.2, §8's Resume round-trip law). A domain
// that was Claimed (popped from ready, mid-fetch) when the process died
// leaves no trace of that claim anywhere but the frontier file itself —
// Resume re-derives readiness from file size vs. recorded offset, so
// such a domain is rediscovered as "has unread bytes" and re-enqueued.
func (o *Orchestrator) Resume(ctx context.Context) error {
	for _, p := range o.pods {
		if err := p.frontier.Resume(ctx); err != nil {
			return fmt.Errorf("orchestrator: resume pod %d: %w", p.index, err)
		}
	}
	return nil
}

// Seed admits the given seed URLs, bypassing the seen-set check (they
// are operator-provided, not discovered). Any pod's Frontier can be used
// as the entry point: AddURLs resolves each URL to its owning pod
// internally, seeded from anywhere.
func (o *Orchestrator) Seed(ctx context.Context, urls []string) (frontier.AddResult, error) {
	inputs := make([]frontier.Input, 0, len(urls))
	for _, u := range urls {
		inputs = append(inputs, frontier.Input{URL: u, Depth: 0})
	}
	return o.pods[0].frontier.AddURLs(ctx, inputs, true)
}

// GOMAXPROCSHint returns the number of logical CPUs automaxprocs has
// configured, for startup logging.
func GOMAXPROCSHint() int { return runtime.GOMAXPROCS(0) }
