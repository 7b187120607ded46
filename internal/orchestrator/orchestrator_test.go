package orchestrator_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/config"
	"github.com/northfleet/podcrawl/internal/coordinator"
	"github.com/northfleet/podcrawl/internal/orchestrator"
	"github.com/northfleet/podcrawl/internal/podstore"
)

func memStoreOpener(_ string) (podstore.Store, error) {
	return podstore.NewMemStore(), nil
}

func TestNewWiresOnePodEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Pods:           []config.Pod{{KVURL: "mem://0"}},
		DataDirs:       []string{t.TempDir()},
		LogDir:         t.TempDir(),
		FetchersPerPod: 1,
		ParsersPerPod:  1,
		ParseQueueSoftLimit: 10,
		ParseQueueHardLimit: 20,
		SeenCapacity:  1000,
		SeenErrorRate: 0.001,
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	o, err := orchestrator.New(cfg, orchestrator.Options{}, memStoreOpener, nil)
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestRunCrawlsSeededURLAndStopsCleanly(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><article>hello</article></body></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Pods:                []config.Pod{{KVURL: "mem://0"}},
		DataDirs:            []string{t.TempDir()},
		LogDir:              t.TempDir(),
		FetchersPerPod:      1,
		ParsersPerPod:       1,
		PolitenessDelaySeconds: 0,
		ParseQueueSoftLimit: 10,
		ParseQueueHardLimit: 20,
		SeenCapacity:        1000,
		SeenErrorRate:       0.001,
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	o, err := orchestrator.New(cfg, orchestrator.Options{Stop: coordinator.Config{MaxPages: 1}}, memStoreOpener, nil)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = o.Seed(ctx, []string{srv.URL + "/page"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop after reaching max_pages")
	}
}
