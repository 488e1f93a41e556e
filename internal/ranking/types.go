// Package ranking scores and orders historical objects against a query's
// embeddings and metadata, producing a deterministic top-K list.
package ranking

import (
	"context"
	"time"

	"github.com/relinkhq/relink/internal/scoring"
)

// Embedding space names. Semantic is mandatory for both queries and
// candidates; the others contribute only when present on both sides.
const (
	SpaceSemantic      = "semantic"
	SpaceNegativeSpace = "negative_space"
	SpaceManufacturing = "manufacturing"
)

// ObjectRecord is a historical object as read from the catalog.
// Ranking treats it as read-only; only the feedback loop mutates
// ObjectConfidence.
type ObjectRecord struct {
	ObjectID         string               `json:"object_id"`
	Embeddings       map[string][]float32 `json:"embeddings"`
	Location         *scoring.Location    `json:"location,omitempty"`
	UpdatedAt        time.Time            `json:"updated_at"`
	ObjectConfidence float64              `json:"object_confidence"`
}

// RankedCandidate is one scored catalog object. Ephemeral, produced per
// ranking call.
type RankedCandidate struct {
	ObjectID                 string  `json:"object_id"`
	MatchProbability         float64 `json:"match_probability"`
	Similarity               float64 `json:"similarity"`
	TimeDecayScore           float64 `json:"time_decay_score"`
	LocationConsistencyScore float64 `json:"location_consistency_score"`
	Rank                     int     `json:"rank"`
}

// Query carries the embeddings and metadata of the newly observed object.
type Query struct {
	// Embeddings maps space name to vector. SpaceSemantic is required;
	// queries without it rank nothing.
	Embeddings map[string][]float32

	// Timestamp is the observation time. Zero means "now".
	Timestamp time.Time

	// Location is optional observation location metadata.
	Location *scoring.Location
}

// CandidateSource supplies catalog objects to rank, most recent first,
// capped at limit. Implementations may return fewer than limit; an
// unreachable source should return an error, which the ranker treats as
// zero candidates.
type CandidateSource interface {
	Candidates(ctx context.Context, limit int) ([]ObjectRecord, error)
}

// Stats reports what one ranking pass did, mainly for tests and debug logs.
type Stats struct {
	// Fetched is how many candidates the source returned.
	Fetched int
	// Skipped counts candidates dropped for missing the semantic embedding.
	Skipped int
	// Scored counts candidates that received a match probability.
	Scored int
}

// Defaults for the ranking pass.
const (
	DefaultK          = 5
	DefaultFetchLimit = 200
	DefaultHalfLife   = 72 * time.Hour
)

// DefaultAxisWeights is the per-space similarity blend. Semantic carries
// most of the signal; negative-space and manufacturing refine it when
// available.
func DefaultAxisWeights() map[string]float64 {
	return map[string]float64{
		SpaceSemantic:      0.65,
		SpaceNegativeSpace: 0.25,
		SpaceManufacturing: 0.10,
	}
}

// Match probability blend coefficients. Similarity dominates; historical
// object confidence, freshness, and location agreement adjust it.
const (
	weightSimilarity = 0.55
	weightObjectConf = 0.20
	weightTimeDecay  = 0.15
	weightLocation   = 0.10
)
