package walstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/store"
	"github.com/nodeweave/peerdb/internal/store/storagetest"
	"github.com/nodeweave/peerdb/internal/value"
)

func TestWALStoreConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestWALStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)

	rec := record.New("persisted")
	rec.Data["k"] = value.Text("v")
	rec.Timestamp = 42
	require.NoError(t, s.SetNode(rec))
	require.NoError(t, s.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetNode("persisted")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", got.Data["k"].AsText())
}

func TestWALStoreSnapshotTruncatesWAL(t *testing.T) {
	dir := t.TempDir()

	s, err := New(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		rec := record.New("n")
		rec.Timestamp = int64(i)
		require.NoError(t, s.SetNode(rec))
	}
	require.NoError(t, s.Snapshot())
	require.NoError(t, s.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.GetNode("n")
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, got.Timestamp)
}
