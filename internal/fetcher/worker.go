package fetcher

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/httpfetch"
	"github.com/northfleet/podcrawl/internal/logging"
)

// MaxHTTPRetries bounds retries to connection-reset and 5xx responses
// (spec.md §4.4: "at most 2, only on connection-reset and 5xx").
const MaxHTTPRetries = 2

// StopDeadlineGrace is a grace period for in-flight HTTP requests after a
// stop signal. No code path reads it: a request runs under the worker's
// context and is cancelled as soon as that context is.
const StopDeadlineGrace = 10 * time.Second

// ClaimRetryDelay is how long a worker sleeps after finding no ready
// domain before trying the frontier again.
const ClaimRetryDelay = 200 * time.Millisecond

// FrontierSource is the subset of frontier.Frontier a fetcher needs.
type FrontierSource interface {
	GetNextURL(ctx context.Context) (entry domain.FrontierEntry, dom string, ok bool, err error)
}

// PolitenessGate is the subset of politeness.Engine a fetcher needs.
type PolitenessGate interface {
	IsURLAllowed(ctx context.Context, domainName, rawURL, path string) (bool, error)
	CanFetchNow(ctx context.Context, domainName string, now time.Time) (bool, error)
	RecordFetchAttempt(ctx context.Context, domainName string, now time.Time) error
	DelayFor(ctx context.Context, domainName string) (time.Duration, error)
}

// Requeuer re-enqueues a domain with a cooldown when politeness rejects
// a popped URL (spec.md §4.4 step 2).
type Requeuer interface {
	EnqueueReady(ctx context.Context, domainName string, eligibleAt time.Time) error
}

// StopSignal reports whether the coordinator has raised the stop flag.
type StopSignal interface {
	Stopped(ctx context.Context) bool
}

// Worker is one fetcher goroutine within a pod's fetcher pool.
type Worker struct {
	id         int
	frontier   FrontierSource
	politeness PolitenessGate
	requeue    Requeuer
	stop       StopSignal
	http       *httpfetch.Client
	queue      *ParseQueue
	log        logging.Logger
}

// Deps bundles a Worker's collaborators.
type Deps struct {
	Frontier   FrontierSource
	Politeness PolitenessGate
	Requeue    Requeuer
	Stop       StopSignal
	HTTP       *httpfetch.Client
	Queue      *ParseQueue
	Log        logging.Logger
}

// NewWorker builds a fetcher Worker.
func NewWorker(id int, d Deps) *Worker {
	log := d.Log
	if log == nil {
		log = logging.NewNop()
	}
	return &Worker{
		id:         id,
		frontier:   d.Frontier,
		politeness: d.Politeness,
		requeue:    d.Requeue,
		stop:       d.Stop,
		http:       d.HTTP,
		queue:      d.Queue,
		log:        log.With(logging.Int("worker_id", id)),
	}
}

// Run drains the frontier until ctx is cancelled or the coordinator
// raises the stop flag.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("fetcher worker started")
	defer w.log.Info("fetcher worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if w.stop != nil && w.stop.Stopped(ctx) {
			return
		}

		if w.queue.AboveSoftLimit() {
			if !w.sleepOrDone(ctx, ClaimRetryDelay) {
				return
			}
			continue
		}

		if !w.step(ctx) {
			if !w.sleepOrDone(ctx, ClaimRetryDelay) {
				return
			}
		}
	}
}

// step pops and processes one URL. It returns false when nothing was
// available (the caller should back off before retrying).
func (w *Worker) step(ctx context.Context) bool {
	entry, domainName, ok, err := w.frontier.GetNextURL(ctx)
	if err != nil {
		w.log.Error("get next url failed", logging.Err(err))
		return false
	}
	if !ok {
		return false
	}

	path := pathOf(entry.URL)

	allowed, err := w.politeness.IsURLAllowed(ctx, domainName, entry.URL, path)
	if err != nil {
		w.log.Error("politeness check failed", logging.String("url", entry.URL), logging.Err(err))
		return true
	}
	if !allowed {
		w.log.Debug("url disallowed by politeness", logging.String("url", entry.URL))
		return true // discarded; the domain's next line waits for the cooldown GetNextURL already scheduled
	}

	now := time.Now()
	canFetch, err := w.politeness.CanFetchNow(ctx, domainName, now)
	if err != nil {
		w.log.Error("can-fetch-now check failed", logging.String("domain", domainName), logging.Err(err))
		return true
	}
	if !canFetch {
		delay, delayErr := w.politeness.DelayFor(ctx, domainName)
		if delayErr == nil {
			_ = w.requeue.EnqueueReady(ctx, domainName, now.Add(delay))
		}
		return true
	}

	resp, fetchErr := w.fetchWithRetries(ctx, entry.URL)

	if recErr := w.politeness.RecordFetchAttempt(ctx, domainName, time.Now()); recErr != nil {
		w.log.Error("record fetch attempt failed", logging.String("domain", domainName), logging.Err(recErr))
	}

	if fetchErr != nil {
		w.log.Info("fetch failed", logging.String("url", entry.URL), logging.Err(fetchErr))
		return true
	}

	task := ParseTask{
		URL:         entry.URL,
		FinalURL:    resp.FinalURL,
		Domain:      domainName,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
		FetchedAt:   time.Now(),
		Depth:       entry.Depth,
		Truncated:   resp.Truncated,
	}
	if pushErr := w.queue.Push(ctx, task); pushErr != nil {
		w.log.Debug("parse queue push cancelled", logging.Err(pushErr))
	}

	return true
}

// fetchWithRetries retries only on connection failures and 5xx
// responses, up to MaxHTTPRetries times, with a short linear backoff.
func (w *Worker) fetchWithRetries(ctx context.Context, rawURL string) (*httpfetch.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= MaxHTTPRetries; attempt++ {
		resp, err := w.http.Get(ctx, rawURL, nil)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			lastErr = err
			if errors.Is(err, httpfetch.ErrTooManyRedirects) {
				return nil, err // not retryable
			}
		} else {
			lastErr = errStatusError(resp.StatusCode)
		}

		if attempt < MaxHTTPRetries {
			if !w.sleepOrDone(ctx, time.Duration(attempt+1)*200*time.Millisecond) {
				return nil, ctx.Err()
			}
		}
	}

	return nil, lastErr
}

func (w *Worker) sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

type httpStatusError struct {
	status int
}

func (e httpStatusError) Error() string {
	return "httpfetch: server error status " + itoa(e.status)
}

func errStatusError(status int) error { return httpStatusError{status: status} }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func pathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
