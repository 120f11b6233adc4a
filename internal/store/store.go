// Package store defines the durability contract every backend satisfies:
// a keyed mapping from node id to record, an append-only history log per
// id, and iteration over everything currently persisted. See spec.md §4.2.
//
// Three implementations live in sibling packages, all satisfying Store
// identically (verified by the shared conformance suite in
// internal/store/storagetest):
//
//   - internal/store/memory   — ephemeral, process-local map.
//   - internal/store/walstore — durable, adapted from the teacher's
//     write-ahead-log-plus-snapshot idiom (internal/store/walstore/wal.go
//     — see DESIGN.md).
//   - internal/store/boltstore — durable, backed by go.etcd.io/bbolt.
package store

import "github.com/nodeweave/peerdb/internal/record"

// Store is the capability set every storage backend implements.
type Store interface {
	// SetNode persists record atomically with respect to concurrent
	// readers of the same id, and appends a history entry.
	SetNode(rec *record.Record) error

	// GetNode fetches the current record for id, or (nil, false) if it
	// has never been set or has been deleted.
	GetNode(id string) (*record.Record, bool, error)

	// DeleteNode removes the record for id outright (spec.md §4.2: this
	// is a local removal, not a tombstone write — the typed delete
	// message is what propagates the deletion to peers).
	DeleteNode(id string) error

	// ListNodes streams every currently persisted record exactly once.
	// The returned sequence is finite and not restartable mid-iteration;
	// a corrupt entry is skipped rather than aborting the whole scan.
	ListNodes(yield func(*record.Record) bool) error

	// GetNodeHistory returns the full append log for id, oldest first.
	// An unknown id returns an empty, non-error result.
	GetNodeHistory(id string) ([]*record.Record, error)

	// Close releases any held file handles. Idempotent.
	Close() error
}
