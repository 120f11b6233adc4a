// Package storagetest is a conformance suite shared across every Store
// implementation (memory, walstore, boltstore). Each backend's own _test.go
// constructs a fresh instance and calls Run against it, the same pattern
// the teacher used to exercise its single store implementation against a
// table of put/get/delete cases.
package storagetest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/store"
	"github.com/nodeweave/peerdb/internal/value"
)

// Run exercises every Store method against a freshly constructed backend.
// newStore is invoked once per subtest so state from one doesn't leak to the
// next.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("SetAndGetNode", func(t *testing.T) { testSetAndGetNode(t, newStore(t)) })
	t.Run("GetMissingNode", func(t *testing.T) { testGetMissingNode(t, newStore(t)) })
	t.Run("DeleteNode", func(t *testing.T) { testDeleteNode(t, newStore(t)) })
	t.Run("ListNodes", func(t *testing.T) { testListNodes(t, newStore(t)) })
	t.Run("ListNodesEarlyStop", func(t *testing.T) { testListNodesEarlyStop(t, newStore(t)) })
	t.Run("NodeHistory", func(t *testing.T) { testNodeHistory(t, newStore(t)) })
	t.Run("GetReturnsClone", func(t *testing.T) { testGetReturnsClone(t, newStore(t)) })
}

func testSetAndGetNode(t *testing.T, s store.Store) {
	rec := record.New("alice")
	rec.Data["name"] = value.Text("Alice")
	rec.Timestamp = 100

	require.NoError(t, s.SetNode(rec))

	got, ok, err := s.GetNode("alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Alice", got.Data["name"].AsText())
	require.EqualValues(t, 100, got.Timestamp)
}

func testGetMissingNode(t *testing.T, s store.Store) {
	got, ok, err := s.GetNode("nobody")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, got)
}

func testDeleteNode(t *testing.T, s store.Store) {
	rec := record.New("bob")
	require.NoError(t, s.SetNode(rec))

	require.NoError(t, s.DeleteNode("bob"))

	_, ok, err := s.GetNode("bob")
	require.NoError(t, err)
	require.False(t, ok)
}

func testListNodes(t *testing.T, s store.Store) {
	ids := []string{"n1", "n2", "n3"}
	for _, id := range ids {
		require.NoError(t, s.SetNode(record.New(id)))
	}

	seen := map[string]bool{}
	err := s.ListNodes(func(rec *record.Record) bool {
		seen[rec.ID] = true
		return true
	})
	require.NoError(t, err)
	for _, id := range ids {
		require.True(t, seen[id], "expected %s in ListNodes", id)
	}
}

func testListNodesEarlyStop(t *testing.T, s store.Store) {
	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.SetNode(record.New(id)))
	}

	count := 0
	err := s.ListNodes(func(rec *record.Record) bool {
		count++
		return count < 2
	})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func testNodeHistory(t *testing.T, s store.Store) {
	r1 := record.New("h1")
	r1.Timestamp = 1
	r1.Data["v"] = value.Number(1)
	require.NoError(t, s.SetNode(r1))

	r2 := record.New("h1")
	r2.Timestamp = 2
	r2.Data["v"] = value.Number(2)
	require.NoError(t, s.SetNode(r2))

	hist, err := s.GetNodeHistory("h1")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.EqualValues(t, 1, hist[0].Timestamp)
	require.EqualValues(t, 2, hist[1].Timestamp)
}

func testGetReturnsClone(t *testing.T, s store.Store) {
	rec := record.New("mutant")
	rec.Data["x"] = value.Number(1)
	require.NoError(t, s.SetNode(rec))

	got, _, err := s.GetNode("mutant")
	require.NoError(t, err)
	got.Data["x"] = value.Number(999)

	got2, _, err := s.GetNode("mutant")
	require.NoError(t, err)
	require.EqualValues(t, 1, got2.Data["x"].AsNumber())
}
