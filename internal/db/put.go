package db

import (
	"fmt"

	"github.com/nodeweave/peerdb/internal/dberr"
	"github.com/nodeweave/peerdb/internal/merge"
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/value"
	"github.com/nodeweave/peerdb/internal/vectorindex"
)

// putOptions controls the three writers that share applyPut:
// an ordinary local Put (both false), a rule action's re-entrant write
// (both true, spec.md §4.5's "suppressed-broadcast" path), and an
// inbound network Put (suppressBroadcast true — the fabric already
// re-broadcasts excluding the source — suppressRules false).
type putOptions struct {
	suppressBroadcast bool
	suppressRules     bool
}

// Put sanitises data, merges it into the stored record for id, persists
// the result, updates the vector index, emits subscriptions, evaluates
// rules, and broadcasts the write to every connected peer.
func (d *DB) Put(id string, data map[string]any) error {
	_, err := d.applyPut(id, data, putOptions{})
	return err
}

// SetType is a convenience Put that merges {type: typeName} into id's
// record (spec.md §4.4).
func (d *DB) SetType(id, typeName string) error {
	return d.Put(id, map[string]any{"type": typeName})
}

// applyPut acquires the façade lock and delegates to applyPutLocked. This
// is the entry point for every writer EXCEPT a rule action, which is
// already running with the lock held and must call applyPutLocked
// directly to avoid deadlocking on d.mu.
func (d *DB) applyPut(id string, rawData map[string]any, opts putOptions) (*record.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applyPutLocked(id, rawData, opts)
}

func (d *DB) applyPutLocked(id string, rawData map[string]any, opts putOptions) (*record.Record, error) {
	if err := d.requireReady(); err != nil {
		return nil, err
	}

	sanitized := value.Sanitize(rawData)
	dataMap := sanitized.AsMapping()

	existing, _, err := d.store.GetNode(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}

	var selfCount uint64
	var priorClock record.VectorClock
	if existing != nil {
		priorClock = existing.VectorClock.Copy()
		selfCount = priorClock[d.peerID]
	} else {
		priorClock = record.VectorClock{}
	}
	newClock := priorClock
	newClock[d.peerID] = selfCount + 1

	ts := now()
	state := make(map[string]int64, len(dataMap))
	for k := range dataMap {
		state[k] = ts
	}

	typ := ""
	if t, ok := dataMap["type"]; ok && t.Kind() == value.KindText {
		typ = t.AsText()
	} else if existing != nil {
		typ = existing.Type
	}

	updated := &record.Record{
		ID:          id,
		Data:        dataMap,
		State:       state,
		Type:        typ,
		Vector:      deriveVector(dataMap, existing),
		Timestamp:   ts,
		VectorClock: newClock,
	}

	merged, err := merge.Merge(existing, updated)
	if err != nil {
		return nil, err
	}

	if err := d.store.SetNode(merged); err != nil {
		return nil, fmt.Errorf("%w: %v", dberr.ErrStorageWrite, err)
	}

	if merged.HasNonEmptyVector() {
		d.index.Upsert(merged.ID, merged.Vector)
	} else {
		d.index.Remove(merged.ID)
	}

	d.emitPutLocked(merged)

	if !opts.suppressRules {
		d.evaluateRulesLocked(merged)
	}

	if !opts.suppressBroadcast {
		if wire, err := recordToWire(merged); err == nil {
			d.fabric.BroadcastPut(wire)
		} else {
			d.log.WithError(err).Warn("failed to encode record for broadcast")
		}
	}

	return merged, nil
}

// deriveVector implements spec.md §4.3's text-embedding precedence: embed
// a "text"/"content" string field if present; otherwise take an explicit
// "vector" field from the payload if present; otherwise inherit the
// previous record's vector.
func deriveVector(data map[string]value.Value, existing *record.Record) []float64 {
	for _, key := range []string{"text", "content"} {
		if v, ok := data[key]; ok && v.Kind() == value.KindText {
			return vectorindex.Embed(v.AsText())
		}
	}
	if v, ok := data["vector"]; ok && v.Kind() == value.KindSequence {
		seq := v.AsSequence()
		out := make([]float64, 0, len(seq))
		for _, e := range seq {
			if e.Kind() == value.KindNumber {
				out = append(out, e.AsNumber())
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	if existing != nil {
		return existing.Vector
	}
	return nil
}

// Get fetches id's record and returns a copy of the whole stored record
// (ok is false if id is absent), with no side effects.
func (d *DB) Get(id string) (*record.Record, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return nil, false, err
	}

	rec, ok, err := d.store.GetNode(id)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}
	return rec, ok, nil
}

// Delete removes id from storage, the vector index, and notifies
// subscribers and peers.
func (d *DB) Delete(id string) error {
	d.mu.Lock()
	if err := d.requireReady(); err != nil {
		d.mu.Unlock()
		return err
	}

	if err := d.store.DeleteNode(id); err != nil {
		d.mu.Unlock()
		return fmt.Errorf("%w: %v", dberr.ErrStorageWrite, err)
	}
	d.index.Remove(id)
	d.emitDeleteLocked(id)
	d.fabric.BroadcastDelete(id)
	d.mu.Unlock()
	return nil
}
