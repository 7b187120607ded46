package shard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/podstore"
	"github.com/northfleet/podcrawl/internal/shard"
)

func TestPodOfIsStableAndInRange(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 4, 16} {
		first := shard.PodOf("example.com", n)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, n)
		assert.Equal(t, first, shard.PodOf("example.com", n), "pod_of must be deterministic")
	}
}

func TestContentDirOfIsStableAndInRange(t *testing.T) {
	t.Parallel()

	for _, m := range []int{1, 8, 64} {
		first := shard.ContentDirOf("https://example.com/a", m)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, m)
		assert.Equal(t, first, shard.ContentDirOf("https://example.com/a", m))
	}
}

func TestContentDirOfDistributesAcrossURLs(t *testing.T) {
	t.Parallel()

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		u := "https://example.com/page" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		seen[shard.ContentDirOf(u, 16)] = true
	}
	assert.Greater(t, len(seen), 1, "200 distinct URLs should not all land in one shard")
}

func TestFabricPodForDomain(t *testing.T) {
	t.Parallel()

	stores := []podstore.Store{podstore.NewMemStore(), podstore.NewMemStore(), podstore.NewMemStore()}
	f := shard.NewFabric(stores)
	require.Equal(t, 3, f.N())

	want := shard.PodOf("example.com", 3)
	got, err := f.PodForDomain("example.com")
	require.NoError(t, err)
	assert.Equal(t, want, got.Index)
	assert.Same(t, stores[want], got.Store)
}

func TestFabricPodForHostReducesToRegistrableDomain(t *testing.T) {
	t.Parallel()

	stores := []podstore.Store{podstore.NewMemStore(), podstore.NewMemStore()}
	f := shard.NewFabric(stores)

	a, err := f.PodForHost("www.example.com")
	require.NoError(t, err)
	b, err := f.PodForDomain("example.com")
	require.NoError(t, err)
	assert.Equal(t, b.Index, a.Index)
}

func TestFabricPodOutOfRange(t *testing.T) {
	t.Parallel()

	f := shard.NewFabric([]podstore.Store{podstore.NewMemStore()})
	_, err := f.Pod(5)
	require.Error(t, err)
}
