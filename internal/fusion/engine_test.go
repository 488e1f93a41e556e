package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relinkhq/relink/internal/reliability"
)

// --- Test Helpers ---

func defaultRel() map[string]reliability.Record {
	return reliability.DefaultPriors()
}

func threeBranches() []BranchOutput {
	return []BranchOutput{
		{Name: "semantics", PSameObject: 0.9, Confidence: 0.8},
		{Name: "geometry", PSameObject: 0.6, Confidence: 0.4},
		{Name: "void", PSameObject: 0.85, Confidence: 0.7},
	}
}

func seededEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithSeed(42, 1337)}, opts...)...)
}

// --- Sampled path ---

func TestFuse_ResultBounds(t *testing.T) {
	res := seededEngine().Fuse(threeBranches(), defaultRel(), 256)

	require.Equal(t, MethodBetaBMA, res.Method)
	assert.GreaterOrEqual(t, res.PFinal, 0.0)
	assert.LessOrEqual(t, res.PFinal, 1.0)
	assert.GreaterOrEqual(t, res.ConfidenceInterval[0], 0.0)
	assert.LessOrEqual(t, res.ConfidenceInterval[1], 1.0)
	assert.LessOrEqual(t, res.ConfidenceInterval[0], res.PFinal)
	assert.GreaterOrEqual(t, res.ConfidenceInterval[1], res.PFinal)
}

func TestFuse_WeightsSumToOne(t *testing.T) {
	res := seededEngine().Fuse(threeBranches(), defaultRel(), 128)

	var sum float64
	for _, w := range res.Weights {
		assert.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestFuse_SeededReproducibility(t *testing.T) {
	a := seededEngine().Fuse(threeBranches(), defaultRel(), 512)
	b := seededEngine().Fuse(threeBranches(), defaultRel(), 512)

	assert.Equal(t, a.PFinal, b.PFinal)
	assert.Equal(t, a.ConfidenceInterval, b.ConfidenceInterval)
	assert.Equal(t, a.Weights, b.Weights)
}

func TestFuse_SamplingNoiseBounded(t *testing.T) {
	a := NewEngine(WithSeed(1, 2)).Fuse(threeBranches(), defaultRel(), 4096)
	b := NewEngine(WithSeed(3, 4)).Fuse(threeBranches(), defaultRel(), 4096)

	// Different seeds, same inputs: means differ only by sampling noise.
	assert.InDelta(t, a.PFinal, b.PFinal, 0.02)
}

func TestFuse_EndToEndScenario(t *testing.T) {
	branches := threeBranches()
	base := map[string]float64{"semantics": 0.4, "geometry": 0.2, "void": 0.4}
	eng := seededEngine(WithBaseWeights(base))

	res := eng.Fuse(branches, defaultRel(), 256)

	require.Equal(t, MethodBetaBMA, res.Method)
	// Fused probability stays within the convex hull of the inputs.
	assert.GreaterOrEqual(t, res.PFinal, 0.6-0.05)
	assert.LessOrEqual(t, res.PFinal, 0.9+0.05)

	// Interval width shrinks as the sample count grows.
	narrow := seededEngine(WithBaseWeights(base)).Fuse(branches, defaultRel(), 4096)
	wide := seededEngine(WithBaseWeights(base)).Fuse(branches, defaultRel(), 32)
	widthNarrow := narrow.ConfidenceInterval[1] - narrow.ConfidenceInterval[0]
	widthWide := wide.ConfidenceInterval[1] - wide.ConfidenceInterval[0]
	assert.Less(t, widthNarrow, widthWide)
}

func TestFuse_ZeroConfidenceBranchKeepsFloorWeight(t *testing.T) {
	branches := []BranchOutput{
		{Name: "visual_semantics", PSameObject: 0.9, Confidence: 0.0},
		{Name: "ghost_context", PSameObject: 0.5, Confidence: 0.9},
	}
	res := seededEngine().Fuse(branches, defaultRel(), 256)

	require.Equal(t, MethodBetaBMA, res.Method)
	// The 0.05 confidence floor keeps the silent branch discounted, not
	// silenced.
	assert.Greater(t, res.Weights["visual_semantics"], 0.0)
	assert.Greater(t, res.Weights["ghost_context"], res.Weights["visual_semantics"])
}

func TestFuse_UnknownBranchGetsDefaultBaseWeight(t *testing.T) {
	branches := []BranchOutput{
		{Name: "brand_new_signal", PSameObject: 0.7, Confidence: 0.6},
	}
	res := seededEngine().Fuse(branches, defaultRel(), 128)

	require.Equal(t, MethodBetaBMA, res.Method)
	assert.InDelta(t, 1.0, res.Weights["brand_new_signal"], 1e-9)
}

func TestFuse_ReliabilityDiscountsWeight(t *testing.T) {
	branches := []BranchOutput{
		{Name: "trusted", PSameObject: 0.8, Confidence: 0.5},
		{Name: "distrusted", PSameObject: 0.8, Confidence: 0.5},
	}
	rel := map[string]reliability.Record{
		"trusted":    {Alpha: 9, Beta: 1},
		"distrusted": {Alpha: 1, Beta: 9},
	}
	res := seededEngine().Fuse(branches, rel, 128)

	require.Equal(t, MethodBetaBMA, res.Method)
	assert.Greater(t, res.Weights["trusted"], res.Weights["distrusted"])
}

// --- Fallback path ---

func TestFuse_EmptyInputFallsBack(t *testing.T) {
	res := seededEngine().Fuse(nil, defaultRel(), 256)

	assert.Equal(t, MethodFallbackMean, res.Method)
	assert.Equal(t, 0.5, res.PFinal)
	assert.Equal(t, 0.35, res.ConfidenceInterval[0])
	assert.Equal(t, 0.65, res.ConfidenceInterval[1])
	assert.Empty(t, res.Weights)
}

func TestFuse_ZeroWeightSumFallsBack(t *testing.T) {
	// Base weights of zero for every branch present drive the raw sum to
	// zero, which must degrade, not divide by zero.
	eng := seededEngine(WithBaseWeights(map[string]float64{"a": 0, "b": 0}))
	branches := []BranchOutput{
		{Name: "a", PSameObject: 0.9, Confidence: 0.8},
		{Name: "b", PSameObject: 0.5, Confidence: 0.6},
	}
	res := eng.Fuse(branches, defaultRel(), 256)

	require.Equal(t, MethodFallbackMean, res.Method)
	assert.InDelta(t, 0.7, res.PFinal, 1e-9)
	for _, w := range res.Weights {
		assert.InDelta(t, 0.5, w, 1e-9)
	}
}

func TestFuse_FallbackIntervalClamped(t *testing.T) {
	eng := seededEngine(WithBaseWeights(map[string]float64{"a": 0}))
	res := eng.Fuse([]BranchOutput{{Name: "a", PSameObject: 0.05, Confidence: 1}}, defaultRel(), 64)

	require.Equal(t, MethodFallbackMean, res.Method)
	assert.Equal(t, 0.0, res.ConfidenceInterval[0])
	assert.InDelta(t, 0.2, res.ConfidenceInterval[1], 1e-9)
}

func TestFuse_ExtremeProbabilitiesStayInRange(t *testing.T) {
	branches := []BranchOutput{
		{Name: "a", PSameObject: 0.0, Confidence: 1.0},
		{Name: "b", PSameObject: 1.0, Confidence: 1.0},
		{Name: "c", PSameObject: 2.0, Confidence: -3.0}, // out-of-range input
	}
	res := seededEngine().Fuse(branches, defaultRel(), 256)

	assert.GreaterOrEqual(t, res.PFinal, 0.0)
	assert.LessOrEqual(t, res.PFinal, 1.0)
	assert.GreaterOrEqual(t, res.ConfidenceInterval[0], 0.0)
	assert.LessOrEqual(t, res.ConfidenceInterval[1], 1.0)
}

func TestUncertaintyLevel(t *testing.T) {
	low := Result{ConfidenceInterval: [2]float64{0.5, 0.6}}
	high := Result{ConfidenceInterval: [2]float64{0.3, 0.8}}

	assert.Equal(t, "low", UncertaintyLevel(low))
	assert.Equal(t, "high", UncertaintyLevel(high))
}
