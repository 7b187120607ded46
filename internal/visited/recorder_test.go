package visited_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/urlnorm"
	"github.com/northfleet/podcrawl/internal/visited"
)

func TestUpsertThenGetRoundTrips(t *testing.T) {
	t.Parallel()

	store := podstore.NewMemStore()
	rec := visited.New(store)
	ctx := context.Background()

	canonical, err := urlnorm.Canonicalize("https://example.com/a")
	require.NoError(t, err)
	fp := urlnorm.Fingerprint(canonical)

	require.NoError(t, rec.Upsert(ctx, domain.VisitedRecord{
		URLFingerprint: fp,
		URL:            "https://example.com/a",
		FinalURL:       canonical,
		Domain:         "example.com",
		StatusCode:     200,
		CrawledAt:      time.Now(),
	}))

	got, ok, err := rec.Get(ctx, canonical)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 200, got.StatusCode)
}

func TestGetReportsMissingRecord(t *testing.T) {
	t.Parallel()

	store := podstore.NewMemStore()
	rec := visited.New(store)

	_, ok, err := rec.Get(context.Background(), "https://never-visited.example/")
	require.NoError(t, err)
	assert.False(t, ok)
}
