package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/fetcher"
	"github.com/northfleet/podcrawl/internal/frontier"
	"github.com/northfleet/podcrawl/internal/httpfetch"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/politeness"
	"github.com/northfleet/podcrawl/internal/seen"
	"github.com/northfleet/podcrawl/internal/shard"
)

type noopStop struct{}

func (noopStop) Stopped(context.Context) bool { return false }

type harness struct {
	frontier *frontier.Frontier
	store    podstore.Store
	pol      *politeness.Engine
	http     *httpfetch.Client
	baseURL  string
}

func newHarness(t *testing.T, robotsBody string) harness {
	t.Helper()

	store := podstore.NewMemStore()
	fabric := shard.NewFabric([]podstore.Store{store})
	seenApprox, err := seen.New(seen.Config{Capacity: 10000, ErrorRate: seen.DefaultErrorRate})
	require.NoError(t, err)

	httpClient := httpfetch.New(httpfetch.Config{UserAgent: "podcrawl-test"})

	pol, err := politeness.New(politeness.Config{
		CacheSize: 16,
		MinDelay:  10 * time.Millisecond,
		UserAgent: "podcrawl-test",
	}, store, httpClient)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		if robotsBody == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(robotsBody))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>hi</body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f := frontier.New(0, frontier.Config{DataDir: t.TempDir()}, store, fabric, seenApprox, pol)
	reg := frontier.NewRegistry(1)
	reg.Register(0, f)

	return harness{frontier: f, store: store, pol: pol, http: httpClient, baseURL: srv.URL}
}

func TestWorkerFetchesAllowedURLAndPushesParseTask(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := h.frontier.AddURLs(ctx, []frontier.Input{{URL: h.baseURL + "/page", Depth: 0}}, true)
	require.NoError(t, err)

	queue := fetcher.NewParseQueue(10, 10)
	w := fetcher.NewWorker(0, fetcher.Deps{
		Frontier:   h.frontier,
		Politeness: h.pol,
		Requeue:    h.store,
		Stop:       noopStop{},
		HTTP:       h.http,
		Queue:      queue,
	})

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	task, ok := queue.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, 200, task.StatusCode)
	assert.Contains(t, string(task.Body), "hi")

	cancel()
	<-done
}

func TestWorkerDiscardsURLDisallowedByRobots(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "User-agent: *\nDisallow: /page\n")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := h.frontier.AddURLs(ctx, []frontier.Input{{URL: h.baseURL + "/page", Depth: 0}}, true)
	require.NoError(t, err)

	queue := fetcher.NewParseQueue(10, 10)
	w := fetcher.NewWorker(0, fetcher.Deps{
		Frontier:   h.frontier,
		Politeness: h.pol,
		Requeue:    h.store,
		Stop:       noopStop{},
		HTTP:       h.http,
		Queue:      queue,
	})

	w.Run(ctx)

	assert.Equal(t, 0, queue.Depth(), "disallowed url never reaches the parse queue")
}
