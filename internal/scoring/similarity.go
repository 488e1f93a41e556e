// Package scoring provides the pure numeric primitives used by ranking:
// cosine similarity, weighted similarity blending, time decay, and
// location consistency. All functions are allocation-free and never panic
// on degenerate input.
package scoring

import "math"

// CosineSim returns the cosine similarity between two vectors.
//
// Degenerate inputs are treated as "no evidence" rather than errors:
// empty vectors, zero-norm vectors, and mismatched lengths all return 0.0.
// Callers are expected to compare vectors from the same embedding space,
// so a length mismatch indicates an incomparable pair, not a bug to
// propagate per-request.
func CosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// BlendSimilarity combines named per-axis similarity scores into one value
// using the given weights. Only axes present in scores with a positive
// weight contribute; the result is renormalized over those axes, so a
// candidate missing an optional axis is judged on what is comparable
// instead of being penalized for the absence.
//
// Returns 0.0 when no axis is comparable.
func BlendSimilarity(scores, weights map[string]float64) float64 {
	var num, den float64
	for axis, s := range scores {
		w := weights[axis]
		if w <= 0 {
			continue
		}
		num += w * s
		den += w
	}
	if den == 0 {
		return 0.0
	}
	return num / den
}
