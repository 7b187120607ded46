package podstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/domain"
	"github.com/northfleet/podcrawl/internal/podstore"
)

func TestMemStoreDomainRecordRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := podstore.NewMemStore()

	_, ok, err := s.GetDomainRecord(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := s.MutateDomainRecord(ctx, "example.com", func(r *domain.Record) {
		r.IsSeeded = true
		r.RobotsCrawlDelaySec = 5
	})
	require.NoError(t, err)
	assert.True(t, rec.IsSeeded)
	assert.EqualValues(t, 5, rec.RobotsCrawlDelaySec)

	got, ok, err := s.GetDomainRecord(ctx, "example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)
}

func TestMemStoreReadyQueueOrdersByEligibility(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := podstore.NewMemStore()
	now := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.EnqueueReady(ctx, "late.com", now.Add(time.Hour)))
	require.NoError(t, s.EnqueueReady(ctx, "early.com", now.Add(-time.Minute)))

	n, err := s.ReadyCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	d, ok, err := s.PopReady(ctx, now)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "early.com", d)

	_, ok, err = s.PopReady(ctx, now)
	require.NoError(t, err)
	assert.False(t, ok, "late.com is not yet eligible")
}

func TestMemStoreVisitedAndCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := podstore.NewMemStore()

	rec := domain.VisitedRecord{URLFingerprint: 42, URL: "https://a.com/x", StatusCode: 200}
	require.NoError(t, s.UpsertVisited(ctx, rec))

	got, ok, err := s.GetVisited(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, got)

	n, err := s.IncrCounter(ctx, "pages_crawled", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.IncrCounter(ctx, "pages_crawled", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	stopped, err := s.GetStopFlag(ctx)
	require.NoError(t, err)
	assert.False(t, stopped)

	require.NoError(t, s.SetStopFlag(ctx))
	stopped, err = s.GetStopFlag(ctx)
	require.NoError(t, err)
	assert.True(t, stopped)
}
