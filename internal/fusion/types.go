// Package fusion combines independent branch signals into one calibrated
// match probability with a credible interval, using reliability-weighted
// Bayesian model averaging over per-branch Beta distributions.
package fusion

// Method identifies which fusion path produced a result. Callers and tests
// use it to distinguish a sampled posterior from a degraded fallback.
type Method string

const (
	// MethodBetaBMA is the normal path: Monte Carlo over per-branch Beta
	// distributions, weighted by reliability and per-request confidence.
	MethodBetaBMA Method = "beta_bma"

	// MethodFallbackMean is the degraded path: plain mean of branch
	// probabilities with a fixed ±0.15 band. Taken on empty input or any
	// numeric degeneracy.
	MethodFallbackMean Method = "fallback_mean"
)

// BranchOutput is one signal source's verdict for a single request.
// Ephemeral: constructed per analyze call, never persisted by this package.
type BranchOutput struct {
	// Name identifies the branch (e.g. "visual_semantics"). It keys into
	// the base-weight table and the reliability store.
	Name string `json:"name"`

	// PSameObject is the branch's probability that the query and the
	// historical object are the same physical object, in [0,1].
	PSameObject float64 `json:"p_same_object"`

	// Confidence is the branch's self-reported confidence in this verdict,
	// in [0,1]. It controls both the branch's fusion weight and how
	// concentrated its sampled distribution is.
	Confidence float64 `json:"confidence"`

	// EmbeddingRefs optionally carries named embedding vectors produced by
	// the branch, passed through for ranking. Not used by fusion itself.
	EmbeddingRefs map[string][]float32 `json:"embedding_refs,omitempty"`
}

// Result is the fused verdict for one request.
type Result struct {
	// PFinal is the fused match probability in [0,1].
	PFinal float64 `json:"p_final"`

	// ConfidenceInterval is the [2.5th, 97.5th] percentile band of the
	// sampled posterior. Always brackets PFinal, both ends in [0,1].
	ConfidenceInterval [2]float64 `json:"confidence_interval"`

	// Weights are the normalized per-branch weights used, summing to 1
	// (uniform on the fallback path).
	Weights map[string]float64 `json:"weights"`

	// Method tags which path produced this result.
	Method Method `json:"method"`
}

// UncertaintyLevel classifies a result's interval width for display:
// "low" when the 95% band is narrower than 0.2, "high" otherwise.
func UncertaintyLevel(r Result) string {
	if r.ConfidenceInterval[1]-r.ConfidenceInterval[0] < 0.2 {
		return "low"
	}
	return "high"
}

// DefaultBaseWeights is the tuned per-branch weight table for the
// production branch set. Unknown branch names fall back to
// DefaultUnknownWeight.
func DefaultBaseWeights() map[string]float64 {
	return map[string]float64{
		"manufacturing_signature": 0.22,
		"ghost_context":           0.19,
		"partial_completion":      0.15,
		"negative_space":          0.23,
		"visual_semantics":        0.21,
	}
}

// DefaultUnknownWeight is the base weight for branches absent from the
// configured table.
const DefaultUnknownWeight = 0.2

// DefaultSampleCount is the Monte Carlo sample count when callers pass
// n <= 0. 256 keeps sampling noise on PFinal under ~0.01 while staying
// well inside a request budget.
const DefaultSampleCount = 256
