package parser_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/contentstore"
	"github.com/northfleet/podcrawl/internal/fetcher"
	"github.com/northfleet/podcrawl/internal/frontier"
	"github.com/northfleet/podcrawl/internal/httpfetch"
	"github.com/northfleet/podcrawl/internal/parser"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/politeness"
	"github.com/northfleet/podcrawl/internal/seen"
	"github.com/northfleet/podcrawl/internal/shard"
	"github.com/northfleet/podcrawl/internal/urlnorm"
	"github.com/northfleet/podcrawl/internal/visited"
)

func newParserHarness(t *testing.T) (*parser.Parser, podstore.Store, *contentstore.Store) {
	t.Helper()

	store := podstore.NewMemStore()
	fabric := shard.NewFabric([]podstore.Store{store})
	seenApprox, err := seen.New(seen.Config{Capacity: 10000, ErrorRate: seen.DefaultErrorRate})
	require.NoError(t, err)
	pol, err := politeness.New(politeness.Config{CacheSize: 16, UserAgent: "podcrawl-test"}, store,
		httpfetch.New(httpfetch.Config{UserAgent: "podcrawl-test"}))
	require.NoError(t, err)

	f := frontier.New(0, frontier.Config{DataDir: t.TempDir()}, store, fabric, seenApprox, pol)
	reg := frontier.NewRegistry(1)
	reg.Register(0, f)

	content, err := contentstore.New([]string{t.TempDir()})
	require.NoError(t, err)

	p := parser.New(parser.Deps{
		Content:    content,
		Visited:    visited.New(store),
		LinkRouter: f,
		Counters:   store,
		Extract:    parser.DefaultExtractor(),
	})

	return p, store, content
}

func TestProcessTaskStoresContentAndUpsertsVisited(t *testing.T) {
	t.Parallel()

	p, store, content := newParserHarness(t)
	ctx := context.Background()

	task := fetcher.ParseTask{
		URL:         "https://example.com/a",
		FinalURL:    "https://example.com/a",
		Domain:      "example.com",
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(`<html><body><article>hello world</article><a href="/b">b</a></body></html>`),
		FetchedAt:   time.Now(),
		Depth:       0,
	}

	require.NoError(t, p.ProcessTask(ctx, task))

	vis, ok, err := store.GetVisited(ctx, fingerprintOf(t, "https://example.com/a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, vis.ContentStored)
	assert.NotEmpty(t, vis.ContentHash)

	assert.True(t, content.Exists(vis.ContentDirShard, contentHashOf(t, "https://example.com/a")))

	n, err := store.ReadyCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "discovered link /b was routed into the frontier")

	pages, err := store.GetCounter(ctx, parser.CounterPagesCrawled)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pages)
}

func TestProcessTaskSkipsExtractionForBinaryContentType(t *testing.T) {
	t.Parallel()

	p, store, _ := newParserHarness(t)
	ctx := context.Background()

	task := fetcher.ParseTask{
		URL:         "https://example.com/file.pdf",
		FinalURL:    "https://example.com/file.pdf",
		Domain:      "example.com",
		StatusCode:  200,
		ContentType: "application/pdf",
		Body:        []byte("%PDF-1.4 binary junk"),
		FetchedAt:   time.Now(),
	}

	require.NoError(t, p.ProcessTask(ctx, task))

	vis, ok, err := store.GetVisited(ctx, fingerprintOf(t, "https://example.com/file.pdf"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, vis.ContentStored)
	assert.Empty(t, vis.ContentHash)
}

func TestProcessTaskIsIdempotentOnReplay(t *testing.T) {
	t.Parallel()

	p, store, _ := newParserHarness(t)
	ctx := context.Background()

	task := fetcher.ParseTask{
		URL:         "https://example.com/a",
		FinalURL:    "https://example.com/a",
		Domain:      "example.com",
		StatusCode:  200,
		ContentType: "text/html",
		Body:        []byte(`<html><body><article>hello world</article></body></html>`),
		FetchedAt:   time.Now(),
	}

	require.NoError(t, p.ProcessTask(ctx, task))
	first, ok, err := store.GetVisited(ctx, fingerprintOf(t, "https://example.com/a"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, p.ProcessTask(ctx, task))
	second, ok, err := store.GetVisited(ctx, fingerprintOf(t, "https://example.com/a"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.ContentDirShard, second.ContentDirShard)
}

func fingerprintOf(t *testing.T, rawURL string) uint64 {
	t.Helper()
	canonical, err := urlnorm.Canonicalize(rawURL)
	require.NoError(t, err)
	return urlnorm.Fingerprint(canonical)
}

func contentHashOf(t *testing.T, rawURL string) string {
	t.Helper()
	canonical, err := urlnorm.Canonicalize(rawURL)
	require.NoError(t, err)
	return urlnorm.ContentHash(canonical)
}
