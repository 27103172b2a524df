package engine

import "math"

// Cosine computes cosine similarity between two sparse mastery vectors over
// their shared-key subspace only. It returns 0 when there is no shared key or
// when either vector's shared-subspace norm is 0.
func Cosine(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	shared := false
	for k, va := range a {
		vb, ok := b[k]
		if !ok {
			continue
		}
		shared = true
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}
	if !shared || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
