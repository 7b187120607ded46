package seen_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northfleet/podcrawl/internal/seen"
)

func newApproximator(t *testing.T) *seen.Approximator {
	t.Helper()
	a, err := seen.New(seen.Config{Capacity: 10000, ErrorRate: seen.DefaultErrorRate})
	require.NoError(t, err)
	return a
}

func TestInsertReportsWasNewOnce(t *testing.T) {
	t.Parallel()

	a := newApproximator(t)

	assert.True(t, a.Insert(42))
	assert.False(t, a.Insert(42), "a repeat insert of the same fingerprint must not report new")
	assert.True(t, a.Contains(42))
}

func TestContainsIsFalseForUnseenFingerprint(t *testing.T) {
	t.Parallel()

	a := newApproximator(t)
	assert.False(t, a.Contains(999))
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	t.Parallel()

	_, err := seen.New(seen.Config{Capacity: 0})
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	a := newApproximator(t)
	a.Insert(1)
	a.Insert(2)
	a.Insert(3)

	path := filepath.Join(t.TempDir(), "seen.bloom")
	require.NoError(t, a.Snapshot(path))

	restored := newApproximator(t)
	require.NoError(t, restored.LoadSnapshot(path))

	assert.True(t, restored.Contains(1))
	assert.True(t, restored.Contains(2))
	assert.True(t, restored.Contains(3))
}
