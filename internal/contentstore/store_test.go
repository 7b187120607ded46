package contentstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/contentstore"
)

func TestPutWritesAndGetReadsBack(t *testing.T) {
	t.Parallel()

	s, err := contentstore.New([]string{t.TempDir(), t.TempDir()})
	require.NoError(t, err)

	shardIdx, err := s.Put("https://example.com/a", "deadbeef", "hello world")
	require.NoError(t, err)
	assert.True(t, s.Exists(shardIdx, "deadbeef"))

	got, err := s.Get(shardIdx, "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
}

func TestPutIsIdempotentForSameContentHash(t *testing.T) {
	t.Parallel()

	s, err := contentstore.New([]string{t.TempDir()})
	require.NoError(t, err)

	shardIdx1, err := s.Put("https://example.com/a", "cafebabe", "first write")
	require.NoError(t, err)

	shardIdx2, err := s.Put("https://example.com/a", "cafebabe", "second write should be ignored")
	require.NoError(t, err)
	assert.Equal(t, shardIdx1, shardIdx2)

	got, err := s.Get(shardIdx1, "cafebabe")
	require.NoError(t, err)
	assert.Equal(t, "first write", got, "existing file for the same hash is never rewritten")
}

func TestNewRejectsMissingDataDir(t *testing.T) {
	t.Parallel()

	_, err := contentstore.New([]string{"/nonexistent/path/for/podcrawl/test"})
	require.ErrorIs(t, err, contentstore.ErrPathMustExist)
}

func TestNewRejectsEmptyDataDirs(t *testing.T) {
	t.Parallel()

	_, err := contentstore.New(nil)
	require.Error(t, err)
}
