package fusion

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/relinkhq/relink/internal/reliability"
)

// Engine fuses branch outputs into a single calibrated probability.
// Stateless apart from its configuration and RNG seed; a snapshot of the
// reliability table is passed in per call, so concurrent Fuse calls never
// share mutable state.
type Engine struct {
	baseWeights map[string]float64
	seed        [2]uint64
	seeded      bool
	log         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBaseWeights overrides the per-branch base-weight table.
func WithBaseWeights(w map[string]float64) Option {
	return func(e *Engine) {
		if len(w) > 0 {
			e.baseWeights = w
		}
	}
}

// WithSeed fixes the RNG seed so sampling is bit-reproducible.
// Used by tests; production engines use a per-call random seed.
func WithSeed(a, b uint64) Option {
	return func(e *Engine) {
		e.seed = [2]uint64{a, b}
		e.seeded = true
	}
}

// WithLogger sets the logger for degraded-path events.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates a fusion engine with the default weight table.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		baseWeights: DefaultBaseWeights(),
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fuse combines branch outputs using reliability-weighted Bayesian model
// averaging.
//
// Each branch's weight is baseWeight · reliabilityMean · clamp(conf, 0.05, 1);
// the 0.05 floor keeps a historically reliable branch from being silenced
// outright by one ambiguous request. Each branch's (p, conf) pair becomes a
// Beta distribution, nSamples draws are taken per branch, and the weighted
// per-draw sum forms the posterior: PFinal is its mean, the interval its
// [2.5, 97.5] percentiles.
//
// Never returns an error: empty input, a zero weight sum, or non-finite
// values degrade to the fallback path, tagged MethodFallbackMean.
func (e *Engine) Fuse(branches []BranchOutput, rel map[string]reliability.Record, nSamples int) Result {
	if len(branches) == 0 {
		return e.fallback(branches, "empty branch list")
	}
	if nSamples <= 0 {
		nSamples = DefaultSampleCount
	}

	weights, ok := e.normalizedWeights(branches, rel)
	if !ok {
		return e.fallback(branches, "degenerate weight sum")
	}

	rng := e.newRand()

	// Weighted sum across branches per sample index: nSamples draws of
	// the fused posterior random variable.
	post := make([]float64, nSamples)
	for _, b := range branches {
		dist := betaFromMeanConf(b.PSameObject, b.Confidence)
		w := weights[b.Name]
		for i := range post {
			post[i] += w * dist.sample(rng)
		}
	}

	var sum float64
	for _, v := range post {
		sum += v
	}
	pFinal := sum / float64(nSamples)
	if !isFinite(pFinal) {
		return e.fallback(branches, "non-finite posterior mean")
	}

	sort.Float64s(post)
	low := percentile(post, 2.5)
	high := percentile(post, 97.5)
	if !isFinite(low) || !isFinite(high) {
		return e.fallback(branches, "non-finite interval bound")
	}

	return Result{
		PFinal:             clamp(pFinal, 0, 1),
		ConfidenceInterval: [2]float64{clamp(low, 0, 1), clamp(high, 0, 1)},
		Weights:            weights,
		Method:             MethodBetaBMA,
	}
}

// normalizedWeights computes per-branch weights summing to 1.
// Returns false when the raw sum is zero or non-finite.
func (e *Engine) normalizedWeights(branches []BranchOutput, rel map[string]reliability.Record) (map[string]float64, bool) {
	raw := make(map[string]float64, len(branches))
	var sum float64

	for _, b := range branches {
		rec, ok := rel[b.Name]
		if !ok {
			rec = reliability.DefaultRecord
		}

		base, ok := e.baseWeights[b.Name]
		if !ok {
			base = DefaultUnknownWeight
		}

		w := base * rec.Mean() * clamp(b.Confidence, 0.05, 1.0)
		raw[b.Name] = w
		sum += w
	}

	if sum <= 0 || !isFinite(sum) {
		return nil, false
	}

	for name, w := range raw {
		raw[name] = w / sum
	}
	return raw, true
}

// fallback is the degraded path: plain mean of branch probabilities with a
// fixed band and uniform weights. The distinct Method tag is the caller's
// only signal of degradation, so it is logged here too.
func (e *Engine) fallback(branches []BranchOutput, reason string) Result {
	e.log.Warn("fusion degraded to fallback", "reason", reason, "branches", len(branches))

	p := 0.5
	weights := map[string]float64{}
	if len(branches) > 0 {
		var sum float64
		for _, b := range branches {
			sum += b.PSameObject
		}
		p = sum / float64(len(branches))
		if !isFinite(p) {
			p = 0.5
		}
		uniform := 1.0 / float64(len(branches))
		for _, b := range branches {
			weights[b.Name] = uniform
		}
	}

	return Result{
		PFinal:             clamp(p, 0, 1),
		ConfidenceInterval: [2]float64{clamp(p-0.15, 0, 1), clamp(p+0.15, 0, 1)},
		Weights:            weights,
		Method:             MethodFallbackMean,
	}
}

// newRand returns the sampling source: fixed seed when configured (tests),
// otherwise a PCG freshly seeded from the global source per call.
func (e *Engine) newRand() *rand.Rand {
	if e.seeded {
		return rand.New(rand.NewPCG(e.seed[0], e.seed[1]))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
