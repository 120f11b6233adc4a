// Package record defines the node record: the unit of replication and
// merge in peerdb. A Record is pure data — no methods here touch storage,
// the network, or the index; those concerns live in internal/store,
// internal/replication, and internal/vectorindex respectively.
package record

import (
	"maps"

	"github.com/nodeweave/peerdb/internal/value"
)

// Record is one node as described in spec.md §3.1.
type Record struct {
	ID          string                   `json:"id"`
	Data        map[string]value.Value   `json:"data"`
	Type        string                   `json:"type,omitempty"`
	Vector      []float64                `json:"vector,omitempty"`
	Timestamp   int64                    `json:"timestamp"`
	State       map[string]int64         `json:"state"`
	VectorClock VectorClock              `json:"vectorClock"`
}

// New builds an empty record with initialised maps, ready to be merged
// into or persisted.
func New(id string) *Record {
	return &Record{
		ID:          id,
		Data:        map[string]value.Value{},
		State:       map[string]int64{},
		VectorClock: VectorClock{},
	}
}

// Clone deep-copies r so callers can hand out a Record without the
// recipient being able to mutate shared internal state (spec.md §3.6:
// records are mutated only through the merge path).
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		ID:        r.ID,
		Type:      r.Type,
		Timestamp: r.Timestamp,
		State:     maps.Clone(r.State),
		VectorClock: r.VectorClock.Copy(),
	}
	if r.Vector != nil {
		out.Vector = append([]float64(nil), r.Vector...)
	}
	out.Data = cloneData(r.Data)
	return out
}

func cloneData(data map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies a Value; Value's public surface is immutable
// scalars plus slice/map fields, so a shallow struct copy aliases nested
// slices/maps — walk it explicitly.
func cloneValue(v value.Value) value.Value {
	switch v.Kind() {
	case value.KindSequence:
		seq := v.AsSequence()
		out := make([]value.Value, len(seq))
		for i, e := range seq {
			out[i] = cloneValue(e)
		}
		return value.Sequence(out...)
	case value.KindMapping:
		m := v.AsMapping()
		out := make(map[string]value.Value, len(m))
		for k, e := range m {
			out[k] = cloneValue(e)
		}
		return value.Mapping(out)
	default:
		return v
	}
}

// HasNonEmptyVector reports whether r carries a usable similarity vector,
// per spec.md §3.1's invariant that Vector is "never empty" when present.
func (r *Record) HasNonEmptyVector() bool {
	return r != nil && len(r.Vector) > 0
}
