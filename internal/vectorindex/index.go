// Package vectorindex is the in-memory brute-force nearest-neighbour index
// over node vectors described in spec.md §4.3. It is rebuilt at startup by
// the façade streaming every record from storage, then kept in sync by
// upsert/remove calls alongside every put/delete.
package vectorindex

import "sort"

type entry struct {
	id     string
	vector []float64
	seq    uint64 // insertion order, for score-tie breaking
}

// Index is a brute-force cosine-similarity index. Zero value is not usable;
// construct with New. Safe only for single-writer use — the façade's
// mutex already serialises every mutation, so Index itself adds no
// locking of its own.
type Index struct {
	entries map[string]*entry
	nextSeq uint64
}

func New() *Index {
	return &Index{entries: make(map[string]*entry)}
}

// Upsert adds or replaces the vector for id. An empty vector is rejected;
// callers that want to clear an id's vector should call Remove instead.
func (idx *Index) Upsert(id string, vector []float64) {
	if len(vector) == 0 {
		return
	}
	if e, ok := idx.entries[id]; ok {
		e.vector = vector
		return
	}
	idx.entries[id] = &entry{id: id, vector: vector, seq: idx.nextSeq}
	idx.nextSeq++
}

func (idx *Index) Remove(id string) {
	delete(idx.entries, id)
}

// Result is one scored match from Search.
type Result struct {
	ID    string
	Score float64
}

// Search returns the k entries most similar to query, highest score first,
// ties broken by insertion order. Non-finite scores are dropped before
// ranking.
func (idx *Index) Search(query []float64, k int) []Result {
	if k <= 0 || len(query) == 0 {
		return nil
	}

	candidates := make([]Result, 0, len(idx.entries))
	seqByID := make(map[string]uint64, len(idx.entries))
	for id, e := range idx.entries {
		score, ok := Cosine(query, e.vector)
		if !ok {
			continue
		}
		candidates = append(candidates, Result{ID: id, Score: score})
		seqByID[id] = e.seq
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return seqByID[candidates[i].ID] < seqByID[candidates[j].ID]
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// Len reports how many vectors are currently indexed.
func (idx *Index) Len() int {
	return len(idx.entries)
}
