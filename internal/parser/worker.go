package parser

import (
	"context"
	"time"

	"github.com/northfleet/podcrawl/internal/fetcher"
	"github.com/northfleet/podcrawl/internal/logging"
)

// Queue is the subset of fetcher.ParseQueue a parser worker drains.
type Queue interface {
	Pop(ctx context.Context) (fetcher.ParseTask, bool)
}

// Pool runs workerCount goroutines, each draining queue and handing
// tasks to one Parser.
type Pool struct {
	parser      *Parser
	queue       Queue
	workerCount int
	log         logging.Logger
	onStart     func()
}

// NewPool builds a parser worker pool.
func NewPool(p *Parser, queue Queue, workerCount int, log logging.Logger) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Pool{parser: p, queue: queue, workerCount: workerCount, log: log}
}

// SetOnStart registers a hook run once at the top of every worker
// goroutine, before it begins draining the queue. The orchestrator uses
// this to lock the OS thread and apply CPU affinity per spec.md §4.8.
func (pool *Pool) SetOnStart(fn func()) { pool.onStart = fn }

// Run blocks until ctx is cancelled, running workerCount parse workers.
func (pool *Pool) Run(ctx context.Context) {
	done := make(chan struct{}, pool.workerCount)
	for i := 0; i < pool.workerCount; i++ {
		go func(id int) {
			if pool.onStart != nil {
				pool.onStart()
			}
			pool.worker(ctx, id)
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < pool.workerCount; i++ {
		<-done
	}
}

func (pool *Pool) worker(ctx context.Context, id int) {
	log := pool.log.With(logging.Int("parser_worker_id", id))
	log.Info("parser worker started")
	defer log.Info("parser worker stopped")

	for {
		task, ok := pool.queue.Pop(ctx)
		if !ok {
			return // ctx cancelled
		}

		start := time.Now()
		if err := pool.parser.ProcessTask(ctx, task); err != nil {
			log.Error("process task failed",
				logging.String("url", task.URL),
				logging.Err(err),
			)
			continue
		}
		log.Debug("processed task",
			logging.String("url", task.URL),
			logging.Duration("elapsed", time.Since(start)),
		)
	}
}
