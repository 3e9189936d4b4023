package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func TestMarkAndHas(t *testing.T) {
	l, _ := openTemp(t)
	ctx := context.Background()

	assert.False(t, l.Has("tx1:0"))
	require.NoError(t, l.MarkHandled(ctx, "tx1:0"))
	assert.True(t, l.Has("tx1:0"))
	assert.False(t, l.Has("tx1:1"))
}

func TestMarkHandledIdempotent(t *testing.T) {
	l, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, l.MarkHandled(ctx, "tx1:0"))
	require.NoError(t, l.MarkHandled(ctx, "tx1:0"))
	assert.Equal(t, 1, l.Len())
}

func TestMarkHandledRejectsEmptyID(t *testing.T) {
	l, _ := openTemp(t)
	require.Error(t, l.MarkHandled(context.Background(), ""))
}

// A restart must reload every handled id, including primed backlog
// ids, so pre-startup events stay skipped.
func TestReopenReloadsHandledSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.MarkHandled(ctx, "tx1:0"))
	_, err = l.Prime(ctx, []string{"tx2:0", "tx3:0"})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Has("tx1:0"))
	assert.True(t, reopened.Has("tx2:0"))
	assert.True(t, reopened.Has("tx3:0"))
	assert.Equal(t, 3, reopened.Len())
}

func TestPrime(t *testing.T) {
	l, _ := openTemp(t)
	ctx := context.Background()

	marked, err := l.Prime(ctx, []string{"tx1:0", "tx2:0", "", "tx1:0"})
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	assert.True(t, l.Has("tx1:0"))
	assert.True(t, l.Has("tx2:0"))

	// Priming again marks nothing new.
	marked, err = l.Prime(ctx, []string{"tx1:0", "tx2:0"})
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
}
