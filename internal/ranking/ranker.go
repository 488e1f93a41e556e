package ranking

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/relinkhq/relink/internal/scoring"
)

// Ranker scores catalog candidates against a query. Stateless apart from
// configuration; safe for concurrent use.
type Ranker struct {
	source      CandidateSource
	axisWeights map[string]float64
	halfLife    time.Duration
	fetchLimit  int
	log         *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithAxisWeights overrides the per-space similarity blend.
func WithAxisWeights(w map[string]float64) Option {
	return func(r *Ranker) {
		if len(w) > 0 {
			r.axisWeights = w
		}
	}
}

// WithHalfLife overrides the freshness half-life.
func WithHalfLife(d time.Duration) Option {
	return func(r *Ranker) {
		if d > 0 {
			r.halfLife = d
		}
	}
}

// WithFetchLimit caps how many candidates are pulled from the source.
// This is a scan budget, not a completeness guarantee: ranking quality
// degrades gracefully once the catalog outgrows the limit.
func WithFetchLimit(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.fetchLimit = n
		}
	}
}

// WithLogger sets the logger for skip/degradation events.
func WithLogger(log *slog.Logger) Option {
	return func(r *Ranker) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRanker creates a Ranker over the given candidate source.
func NewRanker(source CandidateSource, opts ...Option) *Ranker {
	r := &Ranker{
		source:      source,
		axisWeights: DefaultAxisWeights(),
		halfLife:    DefaultHalfLife,
		fetchLimit:  DefaultFetchLimit,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TopK returns the k most likely matches for the query, ranks 1..k.
//
// Candidates missing the mandatory semantic embedding are skipped, not
// zero-scored. An unreachable candidate source yields an empty result,
// not an error: a reconciliation request with no catalog to compare
// against is a degraded answer, not a failure. Ties keep candidate fetch
// order, so the ranking is deterministic for a fixed catalog snapshot.
func (r *Ranker) TopK(ctx context.Context, query Query, k int) ([]RankedCandidate, Stats) {
	if k <= 0 {
		k = DefaultK
	}

	var stats Stats

	if len(query.Embeddings[SpaceSemantic]) == 0 {
		r.log.Warn("ranking query missing semantic embedding")
		return []RankedCandidate{}, stats
	}

	candidates, err := r.source.Candidates(ctx, r.fetchLimit)
	if err != nil {
		r.log.Warn("candidate fetch failed, ranking zero candidates", "error", err)
		return []RankedCandidate{}, stats
	}
	stats.Fetched = len(candidates)

	now := query.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	scored := make([]RankedCandidate, 0, len(candidates))
	for _, cand := range candidates {
		rc, ok := r.score(query, cand, now)
		if !ok {
			stats.Skipped++
			continue
		}
		scored = append(scored, rc)
	}
	stats.Scored = len(scored)

	// Stable keeps fetch order on equal probabilities.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].MatchProbability > scored[j].MatchProbability
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, stats
}

// score computes one candidate's blend. Returns false when the candidate
// lacks the mandatory semantic embedding.
func (r *Ranker) score(query Query, cand ObjectRecord, now time.Time) (RankedCandidate, bool) {
	if len(cand.Embeddings[SpaceSemantic]) == 0 {
		return RankedCandidate{}, false
	}

	// Per-axis cosine over spaces present on both sides.
	sims := make(map[string]float64, len(r.axisWeights))
	for space := range r.axisWeights {
		qv := query.Embeddings[space]
		cv := cand.Embeddings[space]
		if len(qv) == 0 || len(cv) == 0 {
			continue
		}
		sims[space] = scoring.CosineSim(qv, cv)
	}

	sim := scoring.BlendSimilarity(sims, r.axisWeights)
	decay := scoring.TimeDecayScore(now, cand.UpdatedAt, r.halfLife)
	loc := scoring.LocationConsistencyScore(query.Location, cand.Location)

	p := weightSimilarity*sim +
		weightObjectConf*cand.ObjectConfidence +
		weightTimeDecay*decay +
		weightLocation*loc
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}

	return RankedCandidate{
		ObjectID:                 cand.ObjectID,
		MatchProbability:         p,
		Similarity:               sim,
		TimeDecayScore:           decay,
		LocationConsistencyScore: loc,
	}, true
}
