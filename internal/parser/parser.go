// Package parser drains a pod's parse queue, extracts text, persists it
// via the Content Store, records the visit, and routes discovered links
// back into the Frontier, possibly cross-pod (spec.md §4.5). Grounded on
// the teacher's internal/fetcher WorkerPool.handleSuccess/ContentIndexer
// shape: extract, then hand the result to a single collaborator method,
// then update the claim record — here, upsert the visited record instead
// of indexing to Elasticsearch.
package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/northfleet/podcrawl/internal/contentstore"
	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/extract"
	"github.com/northfleet/podcrawl/internal/fetcher"
	"github.com/northfleet/podcrawl/internal/frontier"
	"github.com/northfleet/podcrawl/internal/logging"
	"github.com/northfleet/podcrawl/internal/urlnorm"
	"github.com/northfleet/podcrawl/internal/visited"
)

// textualContentTypes lists the content-types the extractor runs
// against; everything else is recorded but never parsed (spec.md §4.5
// step 1).
var textualContentTypes = []string{"text/html", "application/xhtml+xml", "text/plain"}

// Extractor is the subset of extract.Extract a parser depends on.
type Extractor interface {
	Extract(baseURL string, html []byte) (extract.Result, error)
}

// funcExtractor adapts a bare function (such as extract.Extract) to the
// Extractor interface.
type funcExtractor func(baseURL string, html []byte) (extract.Result, error)

func (f funcExtractor) Extract(baseURL string, html []byte) (extract.Result, error) {
	return f(baseURL, html)
}

// DefaultExtractor wraps the package-level extract.Extract function.
func DefaultExtractor() Extractor { return funcExtractor(extract.Extract) }

// CounterIncrementer is the coordinator pod's counter surface. Satisfied
// directly by podstore.Store.
type CounterIncrementer interface {
	IncrCounter(ctx context.Context, name string, delta int64) (int64, error)
}

// Global counter names (spec.md §2 "Global counters").
const (
	CounterPagesCrawled  = "pages_crawled_total"
	CounterBytesFetched  = "bytes_fetched_total"
	CounterPagesInterval = "pages_in_interval"
)

// Deps bundles a Parser's collaborators.
type Deps struct {
	Content    *contentstore.Store
	Visited    *visited.Recorder
	LinkRouter *frontier.Frontier
	Counters   CounterIncrementer
	Extract    Extractor
	Log        logging.Logger
}

// Parser processes ParseTasks for one pod.
type Parser struct {
	content  *contentstore.Store
	visited  *visited.Recorder
	router   *frontier.Frontier
	counters CounterIncrementer
	extract  Extractor
	log      logging.Logger
}

// New builds a Parser.
func New(d Deps) *Parser {
	log := d.Log
	if log == nil {
		log = logging.NewNop()
	}
	return &Parser{
		content:  d.Content,
		visited:  d.Visited,
		router:   d.LinkRouter,
		counters: d.Counters,
		extract:  d.Extract,
		log:      log,
	}
}

// ProcessTask runs one parse task through extraction, content storage,
// the visited-record upsert, and outbound-link discovery.
func (p *Parser) ProcessTask(ctx context.Context, task fetcher.ParseTask) error {
	finalURL := task.FinalURL
	if finalURL == "" {
		finalURL = task.URL
	}
	canonical, err := urlnorm.Canonicalize(finalURL)
	if err != nil {
		return fmt.Errorf("parser: canonicalize %q: %w", finalURL, err)
	}

	vis := domain.VisitedRecord{
		URLFingerprint: urlnorm.Fingerprint(canonical),
		URL:            task.URL,
		FinalURL:       canonical,
		Domain:         task.Domain,
		StatusCode:     task.StatusCode,
		CrawledAt:      task.FetchedAt,
		ContentType:    task.ContentType,
	}

	if !task.Truncated && task.StatusCode >= 200 && task.StatusCode < 300 && isTextual(task.ContentType) {
		result, err := p.extract.Extract(canonical, task.Body)
		if err != nil {
			return fmt.Errorf("parser: extract %q: %w", canonical, err)
		}

		if strings.TrimSpace(result.Body) != "" {
			shardIdx, err := p.content.Put(canonical, urlnorm.ContentHash(canonical), result.Body)
			if err != nil {
				// spec.md §9: a failed content write must not produce a
				// visited upsert claiming content was stored.
				return fmt.Errorf("parser: store content for %q: %w", canonical, err)
			}
			vis.ContentHash = urlnorm.TextHash(result.Body)
			vis.ContentDirShard = shardIdx
			vis.ContentStored = true
		}

		if err := p.routeLinks(ctx, result.Links, task.Depth+1); err != nil {
			return fmt.Errorf("parser: route links from %q: %w", canonical, err)
		}
	}

	if err := p.visited.Upsert(ctx, vis); err != nil {
		return fmt.Errorf("parser: %w", err)
	}

	p.incrCounters(ctx, len(task.Body))

	return nil
}

// routeLinks canonicalizes and hands every discovered link to the
// Frontier, which resolves pod ownership (local or cross-pod) on its own
// (spec.md §4.5 step 4).
func (p *Parser) routeLinks(ctx context.Context, links []string, depth int) error {
	if len(links) == 0 || p.router == nil {
		return nil
	}

	inputs := make([]frontier.Input, 0, len(links))
	for _, link := range links {
		inputs = append(inputs, frontier.Input{URL: link, Depth: depth})
	}

	_, err := p.router.AddURLs(ctx, inputs, false)
	return err
}

func (p *Parser) incrCounters(ctx context.Context, bodyLen int) {
	if p.counters == nil {
		return
	}
	if _, err := p.counters.IncrCounter(ctx, CounterPagesCrawled, 1); err != nil {
		p.log.Error("increment pages_crawled_total failed", logging.Err(err))
	}
	if _, err := p.counters.IncrCounter(ctx, CounterBytesFetched, int64(bodyLen)); err != nil {
		p.log.Error("increment bytes_fetched_total failed", logging.Err(err))
	}
	if _, err := p.counters.IncrCounter(ctx, CounterPagesInterval, 1); err != nil {
		p.log.Error("increment pages_in_interval failed", logging.Err(err))
	}
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range textualContentTypes {
		if strings.HasPrefix(ct, t) {
			return true
		}
	}
	return false
}
