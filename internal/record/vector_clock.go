package record

// VectorClock is a map from peer identifier to a monotonically increasing
// counter of that peer's local writes to one record. Adapted from the
// teacher's internal/store/vector_clock.go: this module keeps Increment,
// Merge (pointwise max / "join"), and Copy verbatim in spirit, but drops
// Compare/ClockRelation. The teacher used Compare to pick a quorum-read
// winner; this spec's merge algorithm (internal/merge) resolves conflicts
// by wall-clock Timestamp and per-field State, never by clock dominance —
// spec.md §3.1 is explicit that the clock is "causal metadata, not for
// ordering writes" — so a dominance comparator would be dead code here.
type VectorClock map[string]uint64

// Increment bumps the counter for peerID by one.
func (vc VectorClock) Increment(peerID string) {
	vc[peerID]++
}

// Merge returns the pointwise maximum of vc and other — the "join" used by
// the merge engine's step 3 (spec.md §4.1).
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := vc.Copy()
	for peer, count := range other {
		if count > merged[peer] {
			merged[peer] = count
		}
	}
	return merged
}

// Copy returns a deep copy; VectorClock is a reference type and callers
// must not let two records alias the same underlying map.
func (vc VectorClock) Copy() VectorClock {
	if vc == nil {
		return VectorClock{}
	}
	c := make(VectorClock, len(vc))
	for k, v := range vc {
		c[k] = v
	}
	return c
}
