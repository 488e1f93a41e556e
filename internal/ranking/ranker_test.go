package ranking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relinkhq/relink/internal/scoring"
)

// --- Test Helpers ---

type staticSource struct {
	objects []ObjectRecord
	err     error
}

func (s *staticSource) Candidates(ctx context.Context, limit int) ([]ObjectRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.objects) > limit {
		return s.objects[:limit], nil
	}
	return s.objects, nil
}

func semanticObject(id string, vec []float32) ObjectRecord {
	return ObjectRecord{
		ObjectID:         id,
		Embeddings:       map[string][]float32{SpaceSemantic: vec},
		UpdatedAt:        time.Now(),
		ObjectConfidence: 0.5,
	}
}

func semanticQuery(vec []float32) Query {
	return Query{
		Embeddings: map[string][]float32{SpaceSemantic: vec},
		Timestamp:  time.Now(),
	}
}

// --- Scoring and skipping ---

func TestTopK_SkipsCandidatesMissingSemanticEmbedding(t *testing.T) {
	vec := []float32{1, 0, 0}
	complete := semanticObject("complete", vec)
	incomplete := ObjectRecord{
		ObjectID:   "incomplete",
		Embeddings: map[string][]float32{SpaceNegativeSpace: vec},
		UpdatedAt:  time.Now(),
	}

	r := NewRanker(&staticSource{objects: []ObjectRecord{incomplete, complete}})
	results, stats := r.TopK(context.Background(), semanticQuery(vec), 5)

	require.Len(t, results, 1)
	assert.Equal(t, "complete", results[0].ObjectID)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Scored)
}

func TestTopK_OrdersByMatchProbability(t *testing.T) {
	query := []float32{1, 0}
	near := semanticObject("near", []float32{1, 0})
	far := semanticObject("far", []float32{0, 1})

	r := NewRanker(&staticSource{objects: []ObjectRecord{far, near}})
	results, _ := r.TopK(context.Background(), semanticQuery(query), 5)

	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].ObjectID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "far", results[1].ObjectID)
	assert.Equal(t, 2, results[1].Rank)
	assert.Greater(t, results[0].MatchProbability, results[1].MatchProbability)
}

func TestTopK_TiesKeepFetchOrder(t *testing.T) {
	vec := []float32{1, 0}
	now := time.Now()
	var objects []ObjectRecord
	for i := 0; i < 4; i++ {
		obj := semanticObject(fmt.Sprintf("obj-%d", i), vec)
		obj.UpdatedAt = now
		objects = append(objects, obj)
	}

	query := semanticQuery(vec)
	query.Timestamp = now
	r := NewRanker(&staticSource{objects: objects})
	results, _ := r.TopK(context.Background(), query, 10)

	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("obj-%d", i), res.ObjectID, "ties must keep fetch order")
	}
}

func TestTopK_TruncatesToK(t *testing.T) {
	vec := []float32{1, 0}
	var objects []ObjectRecord
	for i := 0; i < 10; i++ {
		objects = append(objects, semanticObject(fmt.Sprintf("obj-%d", i), vec))
	}

	r := NewRanker(&staticSource{objects: objects})
	results, stats := r.TopK(context.Background(), semanticQuery(vec), 3)

	assert.Len(t, results, 3)
	assert.Equal(t, 10, stats.Scored)
	assert.Equal(t, []int{1, 2, 3}, []int{results[0].Rank, results[1].Rank, results[2].Rank})
}

func TestTopK_MatchProbabilityBlend(t *testing.T) {
	now := time.Now()
	vec := []float32{1, 0}
	obj := ObjectRecord{
		ObjectID:         "target",
		Embeddings:       map[string][]float32{SpaceSemantic: vec},
		Location:         &scoring.Location{City: "Bengaluru"},
		UpdatedAt:        now,
		ObjectConfidence: 0.5,
	}
	query := Query{
		Embeddings: map[string][]float32{SpaceSemantic: vec},
		Timestamp:  now,
		Location:   &scoring.Location{City: "Bengaluru"},
	}

	r := NewRanker(&staticSource{objects: []ObjectRecord{obj}})
	results, _ := r.TopK(context.Background(), query, 1)

	require.Len(t, results, 1)
	res := results[0]
	assert.InDelta(t, 1.0, res.Similarity, 1e-6)
	assert.InDelta(t, 1.0, res.TimeDecayScore, 1e-6)
	assert.Equal(t, scoring.LocationSameCity, res.LocationConsistencyScore)
	// 0.55*1 + 0.20*0.5 + 0.15*1 + 0.10*0.95
	assert.InDelta(t, 0.895, res.MatchProbability, 1e-6)
}

func TestTopK_OptionalAxesRefineSimilarity(t *testing.T) {
	sem := []float32{1, 0}
	neg := []float32{0, 1}
	query := Query{
		Embeddings: map[string][]float32{
			SpaceSemantic:      sem,
			SpaceNegativeSpace: neg,
		},
		Timestamp: time.Now(),
	}

	matchingNeg := semanticObject("both-axes", sem)
	matchingNeg.Embeddings[SpaceNegativeSpace] = neg
	mismatchNeg := semanticObject("negative-off", sem)
	mismatchNeg.Embeddings[SpaceNegativeSpace] = []float32{1, 0}

	r := NewRanker(&staticSource{objects: []ObjectRecord{mismatchNeg, matchingNeg}})
	results, _ := r.TopK(context.Background(), query, 2)

	require.Len(t, results, 2)
	assert.Equal(t, "both-axes", results[0].ObjectID)
}

// --- Degraded inputs ---

func TestTopK_QueryWithoutSemanticEmbeddingRanksNothing(t *testing.T) {
	r := NewRanker(&staticSource{objects: []ObjectRecord{semanticObject("x", []float32{1})}})

	results, _ := r.TopK(context.Background(), Query{}, 5)
	assert.Empty(t, results)
}

func TestTopK_SourceErrorYieldsEmptyResult(t *testing.T) {
	r := NewRanker(&staticSource{err: fmt.Errorf("store unreachable")})

	results, stats := r.TopK(context.Background(), semanticQuery([]float32{1}), 5)
	assert.Empty(t, results)
	assert.Equal(t, 0, stats.Fetched)
}

func TestTopK_FetchLimitCapsScan(t *testing.T) {
	vec := []float32{1, 0}
	var objects []ObjectRecord
	for i := 0; i < 50; i++ {
		objects = append(objects, semanticObject(fmt.Sprintf("obj-%d", i), vec))
	}

	r := NewRanker(&staticSource{objects: objects}, WithFetchLimit(20))
	_, stats := r.TopK(context.Background(), semanticQuery(vec), 5)

	assert.Equal(t, 20, stats.Fetched)
}
