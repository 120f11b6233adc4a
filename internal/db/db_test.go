package db

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/store/memory"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(Options{PeerID: "peer-a", Store: memory.New()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestPutThenGetRoundTrips(t *testing.T) {
	d := newTestDB(t)

	err := d.Put("node-1", map[string]any{"name": "alice"})
	require.NoError(t, err)

	rec, ok, err := d.Get("node-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "node-1", rec.ID)
}

func TestPutBumpsVectorClockForSelf(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))
	require.NoError(t, d.Put("node-1", map[string]any{"n": 2}))

	rec, ok, err := d.Get("node-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(2), rec.VectorClock["peer-a"])
}

func TestDeleteRemovesNode(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))
	require.NoError(t, d.Delete("node-1"))

	_, ok, err := d.Get("node-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSetTypeTagsNode(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))
	require.NoError(t, d.SetType("node-1", "Person"))

	rec, ok, err := d.Get("node-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Person", rec.Type)
}

func TestOperationsFailAfterClose(t *testing.T) {
	d, err := Open(Options{PeerID: "peer-a", Store: memory.New()})
	require.NoError(t, err)
	require.NoError(t, d.Close())

	err = d.Put("node-1", map[string]any{"n": 1})
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	d, err := Open(Options{PeerID: "peer-a", Store: memory.New()})
	require.NoError(t, err)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}
