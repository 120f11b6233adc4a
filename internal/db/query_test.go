package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVectorSearchRanksByTextSimilarity(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.Put("capital-uk", map[string]any{"text": "London is the capital of England"}))
	require.NoError(t, d.Put("capital-fr", map[string]any{"text": "Paris is the capital of France"}))
	require.NoError(t, d.Put("unrelated", map[string]any{"text": "bananas are yellow and curved"}))

	results, err := d.VectorSearch("London capital", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "capital-uk", results[0].Record.ID)
}

func TestInstancesOfFiltersByType(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.Put("p1", map[string]any{"type": "Person", "name": "alice"}))
	require.NoError(t, d.Put("p2", map[string]any{"type": "Person", "name": "bob"}))
	require.NoError(t, d.Put("c1", map[string]any{"type": "Company", "name": "acme"}))

	people, err := d.InstancesOf("Person")
	require.NoError(t, err)
	require.Len(t, people, 2)
}

func TestHistoryAndRestore(t *testing.T) {
	d := newTestDB(t)

	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))
	first, _, err := d.Get("node-1")
	require.NoError(t, err)
	firstTS := first.Timestamp

	require.NoError(t, d.Put("node-1", map[string]any{"n": 2}))

	hist, err := d.GetNodeHistory("node-1")
	require.NoError(t, err)
	require.Len(t, hist, 2)

	restored, err := d.RestoreNodeVersion("node-1", firstTS)
	require.NoError(t, err)
	require.NotNil(t, restored)

	current, _, err := d.Get("node-1")
	require.NoError(t, err)
	require.Equal(t, float64(1), current.Data["n"].AsNumber())
}

func TestRestoreNodeVersionUnknownTimestampErrors(t *testing.T) {
	d := newTestDB(t)
	require.NoError(t, d.Put("node-1", map[string]any{"n": 1}))

	_, err := d.RestoreNodeVersion("node-1", 1)
	require.Error(t, err)
}
