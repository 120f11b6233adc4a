package vectorindex

import (
	"hash/fnv"
	"math"
)

// Dims is the fixed dimensionality of every vector this package produces or
// accepts, matching the 64-dimension example spec.md §4.3 cites.
const Dims = 64

// Embed turns text into a deterministic, language-neutral unit vector: a
// per-character non-cryptographic hash bucketed into Dims slots, with
// occurrence counts L2-normalised afterward. The same string always
// produces the same vector, in this process or any other, since fnv-1a has
// no process-local seed.
func Embed(text string) []float64 {
	buckets := make([]float64, Dims)
	for _, r := range text {
		h := fnv.New32a()
		_, _ = h.Write([]byte(string(r)))
		bucket := h.Sum32() % uint32(Dims)
		buckets[bucket]++
	}
	return normalise(buckets)
}

func normalise(v []float64) []float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += x * x
	}
	if sumSquares == 0 {
		return v
	}
	norm := math.Sqrt(sumSquares)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
