package catalog

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/coder/hnsw"

	"github.com/relinkhq/relink/internal/ranking"
)

// VectorIndex is an in-memory HNSW index over the catalog's semantic
// embeddings. It upgrades candidate retrieval from "most recent N" to
// "nearest N", so ranking spends its fetch budget on plausible matches
// instead of merely fresh ones.
//
// The index is rebuilt from the catalog at construction and kept current
// via Add; it holds ids only, fetching full records from the catalog at
// query time.
type VectorIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	catalog *Catalog

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dims    int
}

// NewVectorIndex builds an index over every object currently in the
// catalog that carries a semantic embedding.
func NewVectorIndex(ctx context.Context, cat *Catalog) (*VectorIndex, error) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	idx := &VectorIndex{
		graph:   graph,
		catalog: cat,
		idMap:   make(map[string]uint64),
		keyMap:  make(map[uint64]string),
	}

	// Bootstrap from the full catalog, not the ranking fetch limit: the
	// index exists precisely to search beyond recency.
	objs, err := cat.Candidates(ctx, math.MaxInt32)
	if err != nil {
		return nil, fmt.Errorf("bootstrap vector index: %w", err)
	}
	for _, obj := range objs {
		if err := idx.Add(obj.ObjectID, obj.Embeddings[ranking.SpaceSemantic]); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Add indexes (or re-indexes) one object's semantic embedding.
// Objects without a semantic embedding are ignored.
func (v *VectorIndex) Add(objectID string, embedding []float32) error {
	if len(embedding) == 0 {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.dims == 0 {
		v.dims = len(embedding)
	} else if len(embedding) != v.dims {
		return fmt.Errorf("vector index dimension mismatch for %q: expected %d, got %d",
			objectID, v.dims, len(embedding))
	}

	// Lazy re-index: orphan the old key rather than deleting from the
	// graph (deleting the last node corrupts coder/hnsw graphs).
	if oldKey, exists := v.idMap[objectID]; exists {
		delete(v.keyMap, oldKey)
		delete(v.idMap, objectID)
	}

	key := v.nextKey
	v.nextKey++
	v.graph.Add(hnsw.MakeNode(key, embedding))
	v.idMap[objectID] = key
	v.keyMap[key] = objectID
	return nil
}

// Len returns the number of live entries.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.idMap)
}

// Source returns a ranking.CandidateSource that serves the query's
// nearest neighbors in semantic space, hydrated from the catalog.
func (v *VectorIndex) Source(query []float32) ranking.CandidateSource {
	return &vectorSource{index: v, query: query}
}

type vectorSource struct {
	index *VectorIndex
	query []float32
}

func (s *vectorSource) Candidates(ctx context.Context, limit int) ([]ranking.ObjectRecord, error) {
	if len(s.query) == 0 {
		return nil, fmt.Errorf("vector source requires a semantic query embedding")
	}
	if limit <= 0 {
		limit = ranking.DefaultFetchLimit
	}

	s.index.mu.RLock()
	var ids []string
	if s.index.graph.Len() > 0 {
		for _, node := range s.index.graph.Search(s.query, limit) {
			if id, ok := s.index.keyMap[node.Key]; ok {
				ids = append(ids, id)
			}
		}
	}
	s.index.mu.RUnlock()

	out := make([]ranking.ObjectRecord, 0, len(ids))
	for _, id := range ids {
		obj, err := s.index.catalog.GetObject(ctx, id)
		if err != nil {
			// Orphaned index entry; skip rather than fail the request.
			continue
		}
		out = append(out, obj)
	}
	return out, nil
}
