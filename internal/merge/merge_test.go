package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/value"
)

func rec(id string, ts int64, data map[string]value.Value, state map[string]int64, clock record.VectorClock) *record.Record {
	return &record.Record{
		ID:          id,
		Data:        data,
		State:       state,
		Timestamp:   ts,
		VectorClock: clock,
	}
}

// P3: LWW on differing timestamps, either operand order.
func TestMerge_LWWOnDifferingTimestamps(t *testing.T) {
	a := rec("x", 10, map[string]value.Value{"name": value.Text("old")}, map[string]int64{"name": 10}, record.VectorClock{"p1": 1})
	b := rec("x", 20, map[string]value.Value{"name": value.Text("new")}, map[string]int64{"name": 20}, record.VectorClock{"p2": 1})

	ab, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, "new", ab.Data["name"].AsText())
	require.EqualValues(t, 20, ab.Timestamp)

	ba, err := Merge(b, a)
	require.NoError(t, err)
	require.Equal(t, "new", ba.Data["name"].AsText())
	require.EqualValues(t, 20, ba.Timestamp)
}

// P1: determinism/commutativity of merge.
func TestMerge_Commutative(t *testing.T) {
	a := rec("x", 30, map[string]value.Value{"a": value.Number(1), "shared": value.Number(1)},
		map[string]int64{"a": 30, "shared": 30}, record.VectorClock{"p1": 2})
	b := rec("x", 30, map[string]value.Value{"b": value.Number(2), "shared": value.Number(2)},
		map[string]int64{"b": 30, "shared": 30}, record.VectorClock{"p2": 3})

	ab, err := Merge(a, b)
	require.NoError(t, err)
	ba, err := Merge(b, a)
	require.NoError(t, err)

	require.True(t, value.Equal(value.Mapping(ab.Data), value.Mapping(ba.Data)))
	require.Equal(t, ab.VectorClock, ba.VectorClock)
}

// P2: idempotence, including vector clock.
func TestMerge_Idempotent(t *testing.T) {
	a := rec("x", 5, map[string]value.Value{"k": value.Text("v")}, map[string]int64{"k": 5}, record.VectorClock{"p1": 4})
	out, err := Merge(a, a)
	require.NoError(t, err)
	require.True(t, value.Equal(value.Mapping(out.Data), value.Mapping(a.Data)))
	require.Equal(t, a.VectorClock, out.VectorClock)
	require.Equal(t, a.Timestamp, out.Timestamp)
}

// P4: tombstone removes the key and records the tombstone timestamp.
func TestMerge_Tombstone(t *testing.T) {
	local := rec("x", 10, map[string]value.Value{"key": value.Text("v")}, map[string]int64{"key": 10}, record.VectorClock{"p1": 1})
	incoming := rec("x", 20, map[string]value.Value{"key": value.Null()}, map[string]int64{"key": 20}, record.VectorClock{"p1": 2})

	out, err := Merge(local, incoming)
	require.NoError(t, err)
	_, present := out.Data["key"]
	require.False(t, present)
	require.EqualValues(t, 20, out.State["key"])
}

// S6: equal-timestamp tie-break, incoming wins on equal per-field state.
func TestMerge_EqualTimestampTieBreak(t *testing.T) {
	a := rec("x", 100, map[string]value.Value{"a": value.Number(1), "shared": value.Number(1)},
		map[string]int64{"a": 100, "shared": 100}, record.VectorClock{"p1": 1})
	b := rec("x", 100, map[string]value.Value{"b": value.Number(2), "shared": value.Number(2)},
		map[string]int64{"b": 100, "shared": 100}, record.VectorClock{"p2": 1})

	out, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, float64(1), out.Data["a"].AsNumber())
	require.Equal(t, float64(2), out.Data["b"].AsNumber())
	require.Equal(t, float64(2), out.Data["shared"].AsNumber())
}

func TestMerge_MismatchedIDs(t *testing.T) {
	a := rec("x", 1, nil, nil, record.VectorClock{})
	b := rec("y", 1, nil, nil, record.VectorClock{})
	_, err := Merge(a, b)
	require.Error(t, err)
}

func TestMerge_NilLocal(t *testing.T) {
	b := rec("x", 1, map[string]value.Value{"a": value.Number(1)}, map[string]int64{"a": 1}, record.VectorClock{"p1": 1})
	out, err := Merge(nil, b)
	require.NoError(t, err)
	require.Equal(t, float64(1), out.Data["a"].AsNumber())
}

func TestMerge_NestedMapping(t *testing.T) {
	local := rec("x", 10,
		map[string]value.Value{"profile": value.Mapping(map[string]value.Value{"city": value.Text("NYC"), "age": value.Number(30)})},
		map[string]int64{"profile": 10}, record.VectorClock{"p1": 1})
	incoming := rec("x", 20,
		map[string]value.Value{"profile": value.Mapping(map[string]value.Value{"city": value.Text("LA")})},
		map[string]int64{"profile": 20}, record.VectorClock{"p1": 2})

	out, err := Merge(local, incoming)
	require.NoError(t, err)
	profile := out.Data["profile"].AsMapping()
	require.Equal(t, "LA", profile["city"].AsText())
	require.Equal(t, float64(30), profile["age"].AsNumber())
}
