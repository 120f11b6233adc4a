package db

import (
	"github.com/nodeweave/peerdb/internal/merge"
	"github.com/nodeweave/peerdb/internal/record"
)

// HandlePut, HandleLegacyPut, HandleDelete, and ServeSnapshot satisfy
// replication.Handler: the fabric calls these after already dropping
// self-origin echoes. The fabric re-broadcasts the message to every other
// connection itself, so none of these broadcast again.

// HandlePut applies an inbound full-record put: merge(existing, incoming)
// directly, without recomputing a vector clock bump or timestamp the way
// a local Put does — the incoming record already carries both, produced
// by whichever peer originated the write (spec.md §4.6's `put` message
// carries a full `node`).
func (d *DB) HandlePut(node map[string]any) {
	incoming, err := wireToRecord(node)
	if err != nil {
		d.log.WithError(err).Warn("dropping malformed inbound put")
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateReady {
		return
	}

	existing, _, err := d.store.GetNode(incoming.ID)
	if err != nil {
		d.log.WithField("node_id", incoming.ID).WithError(err).Warn("failed to read existing record for inbound put")
		return
	}

	merged, err := merge.Merge(existing, incoming)
	if err != nil {
		d.log.WithField("node_id", incoming.ID).WithError(err).Warn("failed to merge inbound put")
		return
	}

	if err := d.store.SetNode(merged); err != nil {
		d.log.WithField("node_id", incoming.ID).WithError(err).Warn("failed to persist inbound put")
		return
	}

	if merged.HasNonEmptyVector() {
		d.index.Upsert(merged.ID, merged.Vector)
	} else {
		d.index.Remove(merged.ID)
	}

	d.emitPutLocked(merged)
	d.evaluateRulesLocked(merged)
}

// HandleLegacyPut applies the legacy {type:put, id, data} shape, accepted
// on inbound but never produced by this module (spec.md §4.6). Lacking a
// vector clock or timestamp of its own, it's treated the same as a local
// Put authored by this peer, just without re-broadcasting.
func (d *DB) HandleLegacyPut(id string, data map[string]any) {
	if _, err := d.applyPut(id, data, putOptions{suppressBroadcast: true}); err != nil {
		d.log.WithField("node_id", id).WithError(err).Warn("failed to apply legacy inbound put")
	}
}

func (d *DB) HandleDelete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateReady {
		return
	}
	if err := d.store.DeleteNode(id); err != nil {
		d.log.WithField("node_id", id).WithError(err).Warn("failed to apply inbound delete")
		return
	}
	d.index.Remove(id)
	d.emitDeleteLocked(id)
}

// ServeSnapshot serves every currently stored record to a requesting peer,
// as a series of wire-encoded "put" payloads (spec.md §4.6's sync_request
// response). Named distinctly from the (*DB).Snapshot history-compaction
// knob in db.go — Go has no method overloading, and the two have
// unrelated signatures and callers.
func (d *DB) ServeSnapshot(send func(node map[string]any)) {
	_ = d.store.ListNodes(func(rec *record.Record) bool {
		wire, err := recordToWire(rec)
		if err != nil {
			d.log.WithField("node_id", rec.ID).WithError(err).Warn("failed to encode record for snapshot")
			return true
		}
		send(wire)
		return true
	})
}
