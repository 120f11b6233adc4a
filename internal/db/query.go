package db

import (
	"fmt"

	"github.com/nodeweave/peerdb/internal/dberr"
	"github.com/nodeweave/peerdb/internal/record"
	"github.com/nodeweave/peerdb/internal/value"
	"github.com/nodeweave/peerdb/internal/vectorindex"
)

// SearchResult pairs a record with its similarity score.
type SearchResult struct {
	Record *record.Record
	Score  float64
}

// VectorSearch embeds query if it's a string, queries the in-memory
// index, and falls back to a brute-force scan over storage if the index
// is empty (spec.md §4.4). Ties are broken by insertion order, inherited
// from vectorindex.Index.Search.
func (d *DB) VectorSearch(query any, k int) ([]SearchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return nil, err
	}

	var queryVec []float64
	switch q := query.(type) {
	case []float64:
		queryVec = q
	case string:
		queryVec = vectorindex.Embed(q)
	default:
		return nil, fmt.Errorf("db: vector search query must be a vector or string, got %T", query)
	}

	if d.index.Len() > 0 {
		return d.resultsFromIndex(queryVec, k)
	}
	return d.scanStorageForSimilar(queryVec, k)
}

func (d *DB) resultsFromIndex(queryVec []float64, k int) ([]SearchResult, error) {
	matches := d.index.Search(queryVec, k)
	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		rec, ok, err := d.store.GetNode(m.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
		}
		if !ok {
			continue
		}
		out = append(out, SearchResult{Record: rec, Score: m.Score})
	}
	return out, nil
}

// scanStorageForSimilar is the fallback path when the index holds
// nothing yet (e.g. right after startup on an empty index with storage
// not rebuilt — defensive; rebuildIndex normally prevents this).
func (d *DB) scanStorageForSimilar(queryVec []float64, k int) ([]SearchResult, error) {
	scratch := vectorindex.New()
	err := d.store.ListNodes(func(rec *record.Record) bool {
		if rec.HasNonEmptyVector() {
			scratch.Upsert(rec.ID, rec.Vector)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}

	matches := scratch.Search(queryVec, k)
	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		rec, ok, err := d.store.GetNode(m.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
		}
		if !ok {
			continue
		}
		out = append(out, SearchResult{Record: rec, Score: m.Score})
	}
	return out, nil
}

// InstancesOf scans storage for every record whose Type equals typeName.
func (d *DB) InstancesOf(typeName string) ([]*record.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return nil, err
	}

	var out []*record.Record
	err := d.store.ListNodes(func(rec *record.Record) bool {
		if rec.Type == typeName {
			out = append(out, rec)
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}
	return out, nil
}

// GetNodeHistory returns id's full append log, oldest first.
func (d *DB) GetNodeHistory(id string) ([]*record.Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.requireReady(); err != nil {
		return nil, err
	}

	hist, err := d.store.GetNodeHistory(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}
	return hist, nil
}

// RestoreNodeVersion locates the history entry for id with exactly
// timestamp ts and puts its data back, creating a new current state with
// a fresh timestamp and vector-clock bump (spec.md §4.4) — the restore
// itself goes through the ordinary put path, so it's replicated and
// re-evaluated by rules like any other write (SPEC_FULL.md §9).
func (d *DB) RestoreNodeVersion(id string, ts int64) (*record.Record, error) {
	d.mu.Lock()
	hist, err := d.store.GetNodeHistory(id)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dberr.ErrStorageRead, err)
	}

	var found *record.Record
	for _, rec := range hist {
		if rec.Timestamp == ts {
			found = rec
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: id=%q timestamp=%d", dberr.ErrVersionNotFound, id, ts)
	}

	raw := make(map[string]any, len(found.Data))
	for k, v := range found.Data {
		raw[k] = value.ToAny(v)
	}

	return d.applyPut(id, raw, putOptions{})
}
