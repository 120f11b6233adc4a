// Package merge implements the core's conflict resolution: deterministic,
// commutative, idempotent merge of two node records, per spec.md §4.1.
package merge

import (
	"fmt"

	"github.com/nodeweave/peerdb/internal/dberr"
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/value"
)

// Merge combines local (the currently stored record, or nil if this id has
// never been seen) with incoming (a newly arrived write, local or remote)
// and returns the resulting record. Merge never mutates either input.
func Merge(local, incoming *record.Record) (*record.Record, error) {
	if incoming == nil {
		return nil, fmt.Errorf("peerdb: merge called with a nil incoming record")
	}
	if local == nil {
		return incoming.Clone(), nil
	}
	if local.ID != incoming.ID {
		return nil, fmt.Errorf("%w: local=%q incoming=%q", dberr.ErrMergeMismatch, local.ID, incoming.ID)
	}

	mergedClock := local.VectorClock.Merge(incoming.VectorClock)

	if incoming.Timestamp < local.Timestamp {
		out := local.Clone()
		out.VectorClock = mergedClock
		return out, nil
	}

	// incoming.Timestamp > local.Timestamp, or equal (same deep merge,
	// ties broken in favor of incoming per-field via deepMergeFields).
	data, state := deepMergeFields(local.Data, local.State, incoming.Data, incoming.State, incoming.Timestamp)

	vec := incoming.Vector
	if len(vec) == 0 {
		vec = local.Vector
	}
	typ := incoming.Type
	if typ == "" {
		typ = local.Type
	}

	return &record.Record{
		ID:          local.ID,
		Data:        data,
		State:       state,
		Type:        typ,
		Vector:      cloneFloats(vec),
		Timestamp:   incoming.Timestamp,
		VectorClock: mergedClock,
	}, nil
}

// deepMergeFields merges top-level fields of incData/incState into
// baseData/baseState at merge timestamp T, per spec.md §4.1's "deep
// per-field merge" algorithm.
func deepMergeFields(
	baseData map[string]value.Value, baseState map[string]int64,
	incData map[string]value.Value, incState map[string]int64,
	t int64,
) (map[string]value.Value, map[string]int64) {
	outData := make(map[string]value.Value, len(baseData))
	for k, v := range baseData {
		outData[k] = v
	}
	outState := make(map[string]int64, len(baseState))
	for k, v := range baseState {
		outState[k] = v
	}

	for key, incVal := range incData {
		incTs, ok := incState[key]
		if !ok {
			incTs = t
		}
		baseTs := baseState[key] // defaults to 0 if absent

		if incTs < baseTs {
			continue // base wins this field
		}

		if incVal.Kind() == value.KindNull {
			delete(outData, key)
			outState[key] = incTs
			continue
		}

		if baseVal, hasBase := baseData[key]; hasBase &&
			baseVal.Kind() == value.KindMapping && incVal.Kind() == value.KindMapping {
			merged := mergeNestedMapping(baseVal.AsMapping(), baseTs, incVal.AsMapping(), incTs)
			outData[key] = value.Mapping(merged)
			outState[key] = incTs
			continue
		}

		outData[key] = incVal
		outState[key] = incTs
	}

	return outData, outState
}

// mergeNestedMapping merges a nested mapping found inside a single
// top-level field. Nested fields carry no timestamp of their own (flat
// scheme): every key in the subtree is compared with the same (baseTs,
// incTs) pair inherited from the enclosing top-level field, per spec.md
// §4.1.
func mergeNestedMapping(base map[string]value.Value, baseTs int64, incoming map[string]value.Value, incTs int64) map[string]value.Value {
	out := make(map[string]value.Value, len(base))
	for k, v := range base {
		out[k] = v
	}

	if incTs < baseTs {
		return out
	}

	for key, incVal := range incoming {
		if incVal.Kind() == value.KindNull {
			delete(out, key)
			continue
		}
		if baseVal, hasBase := base[key]; hasBase &&
			baseVal.Kind() == value.KindMapping && incVal.Kind() == value.KindMapping {
			out[key] = value.Mapping(mergeNestedMapping(baseVal.AsMapping(), baseTs, incVal.AsMapping(), incTs))
			continue
		}
		out[key] = incVal
	}
	return out
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
