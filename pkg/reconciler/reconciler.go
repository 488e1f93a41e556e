// Package reconciler wires the relink engines and stores into one
// embeddable facade: analyze (fuse + rank), feedback, and catalog
// maintenance behind a single handle.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/relinkhq/relink/internal/catalog"
	"github.com/relinkhq/relink/internal/config"
	"github.com/relinkhq/relink/internal/errors"
	"github.com/relinkhq/relink/internal/feedback"
	"github.com/relinkhq/relink/internal/fusion"
	"github.com/relinkhq/relink/internal/ranking"
	"github.com/relinkhq/relink/internal/reliability"
)

// AnalyzeRequest is one reconciliation request: the branch verdicts about
// a newly observed object plus its embeddings and metadata for ranking.
type AnalyzeRequest struct {
	// RequestID identifies the request for later feedback. Generated when
	// empty.
	RequestID string `json:"request_id"`

	// Branches are the per-signal-source outputs to fuse.
	Branches []fusion.BranchOutput `json:"branches"`

	// Query carries embeddings and metadata for candidate ranking.
	// A query without embeddings skips ranking.
	Query ranking.Query `json:"-"`

	// K overrides the configured result count when positive.
	K int `json:"k,omitempty"`
}

// AnalyzeResult is the combined verdict.
type AnalyzeResult struct {
	RequestID   string                    `json:"request_id"`
	Fusion      fusion.Result             `json:"fusion"`
	Uncertainty string                    `json:"uncertainty_level"`
	Candidates  []ranking.RankedCandidate `json:"candidates"`
}

// Reconciler owns the stores and engines. Safe for concurrent use; the
// engines are stateless and the stores serialize their own writes.
type Reconciler struct {
	mu      sync.RWMutex
	cfg     *config.Config
	engine  *fusion.Engine
	ranker  *ranking.Ranker
	loop    *feedback.Loop

	cat     *catalog.Catalog
	rel     reliability.Store
	events  feedback.EventLog
	vecIdx  *catalog.VectorIndex
	watcher *config.Watcher
	log     *slog.Logger
}

// New opens the stores at cfg.Storage.Path and assembles the engines.
// Storage-open failures are loud: a reconciler without its catalog is a
// misconfiguration, not a degraded request.
func New(cfg *config.Config, log *slog.Logger) (*Reconciler, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	cat, err := catalog.Open(cfg.Storage.Path, log)
	if err != nil {
		return nil, errors.StorageError("open catalog", err)
	}

	rel, err := reliability.NewSQLiteStore(cat.DB(), cfg.Reliability.Priors, log)
	if err != nil {
		_ = cat.Close()
		return nil, errors.StorageError("open reliability store", err)
	}

	events, err := feedback.NewSQLiteLog(cat.DB())
	if err != nil {
		_ = cat.Close()
		return nil, errors.StorageError("open feedback log", err)
	}

	r := &Reconciler{
		cfg:    cfg,
		cat:    cat,
		rel:    rel,
		events: events,
		log:    log,
	}

	if cfg.Ranking.UseVectorIndex {
		idx, err := catalog.NewVectorIndex(context.Background(), cat)
		if err != nil {
			_ = cat.Close()
			return nil, errors.StorageError("build vector index", err)
		}
		r.vecIdx = idx
	}

	r.rebuild(cfg)
	r.loop = feedback.NewLoop(rel, cat, events, log)
	return r, nil
}

// rebuild swaps in engines derived from cfg. Called at startup and on
// config hot reload.
func (r *Reconciler) rebuild(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
	r.engine = fusion.NewEngine(
		fusion.WithBaseWeights(cfg.Fusion.BaseWeights),
		fusion.WithLogger(r.log),
	)
	r.ranker = ranking.NewRanker(r.cat,
		ranking.WithAxisWeights(cfg.Ranking.AxisWeights),
		ranking.WithHalfLife(cfg.HalfLife()),
		ranking.WithFetchLimit(cfg.Ranking.FetchLimit),
		ranking.WithLogger(r.log),
	)
}

// Watch hot-reloads configuration from path until Close.
func (r *Reconciler) Watch(path string) error {
	w, err := config.NewWatcher(path, r.rebuild, r.log)
	if err != nil {
		return err
	}
	r.watcher = w
	return nil
}

// Analyze fuses the request's branch outputs and, when the query carries
// a semantic embedding, ranks catalog candidates. Fusion and ranking run
// concurrently; both degrade rather than fail, so the returned error is
// reserved for context cancellation.
func (r *Reconciler) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	r.mu.RLock()
	cfg := r.cfg
	engine := r.engine
	ranker := r.ranker
	vecIdx := r.vecIdx
	r.mu.RUnlock()

	result := &AnalyzeResult{RequestID: req.RequestID}
	if result.RequestID == "" {
		result.RequestID = uuid.NewString()
	}

	k := req.K
	if k <= 0 {
		k = cfg.Ranking.K
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rel, err := r.rel.Snapshot(gctx)
		if err != nil {
			// Snapshot fails open; an error here still leaves priors.
			r.log.Warn("reliability snapshot error", "error", err)
		}
		result.Fusion = engine.Fuse(req.Branches, rel, cfg.Fusion.SampleCount)
		result.Uncertainty = fusion.UncertaintyLevel(result.Fusion)
		return nil
	})

	g.Go(func() error {
		if len(req.Query.Embeddings[ranking.SpaceSemantic]) == 0 {
			result.Candidates = []ranking.RankedCandidate{}
			return nil
		}
		rk := r.rankerFor(cfg, ranker, vecIdx, req.Query)
		candidates, stats := rk.TopK(gctx, req.Query, k)
		r.log.Debug("ranking pass",
			"fetched", stats.Fetched, "skipped", stats.Skipped, "scored", stats.Scored)
		result.Candidates = candidates
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Rank scores catalog candidates against the query without fusing any
// branch outputs. Same degraded semantics as the ranking half of Analyze.
func (r *Reconciler) Rank(ctx context.Context, query ranking.Query, k int) ([]ranking.RankedCandidate, error) {
	r.mu.RLock()
	cfg := r.cfg
	ranker := r.ranker
	vecIdx := r.vecIdx
	r.mu.RUnlock()

	if k <= 0 {
		k = cfg.Ranking.K
	}
	if len(query.Embeddings[ranking.SpaceSemantic]) == 0 {
		return []ranking.RankedCandidate{}, nil
	}

	candidates, stats := r.rankerFor(cfg, ranker, vecIdx, query).TopK(ctx, query, k)
	r.log.Debug("ranking pass",
		"fetched", stats.Fetched, "skipped", stats.Skipped, "scored", stats.Scored)
	return candidates, nil
}

// rankerFor picks the recency ranker or, when the vector index is live,
// a ranker over the query's nearest neighbors.
func (r *Reconciler) rankerFor(cfg *config.Config, ranker *ranking.Ranker, vecIdx *catalog.VectorIndex, query ranking.Query) *ranking.Ranker {
	if vecIdx == nil {
		return ranker
	}
	return ranking.NewRanker(vecIdx.Source(query.Embeddings[ranking.SpaceSemantic]),
		ranking.WithAxisWeights(cfg.Ranking.AxisWeights),
		ranking.WithHalfLife(cfg.HalfLife()),
		ranking.WithFetchLimit(cfg.Ranking.FetchLimit),
		ranking.WithLogger(r.log),
	)
}

// Feedback applies a confirmed outcome. Best-effort per step; the joined
// error reports which steps failed without implying the others did not run.
func (r *Reconciler) Feedback(ctx context.Context, ev feedback.Event) error {
	if ev.RequestID == "" {
		return errors.ValidationError("feedback request id is required", nil)
	}
	if ev.CorrectObjectID == "" {
		return errors.ValidationError("feedback object id is required", nil)
	}
	return r.loop.Apply(ctx, ev)
}

// Reliability returns the current belief table.
func (r *Reconciler) Reliability(ctx context.Context) (map[string]reliability.Record, error) {
	return r.rel.Snapshot(ctx)
}

// AddObject upserts a catalog object and keeps the vector index current.
func (r *Reconciler) AddObject(ctx context.Context, obj ranking.ObjectRecord) error {
	if err := r.cat.UpsertObject(ctx, obj); err != nil {
		return err
	}
	if r.vecIdx != nil {
		if err := r.vecIdx.Add(obj.ObjectID, obj.Embeddings[ranking.SpaceSemantic]); err != nil {
			return fmt.Errorf("index object %q: %w", obj.ObjectID, err)
		}
	}
	return nil
}

// GetObject reads one catalog object.
func (r *Reconciler) GetObject(ctx context.Context, id string) (ranking.ObjectRecord, error) {
	return r.cat.GetObject(ctx, id)
}

// Close releases the watcher and stores.
func (r *Reconciler) Close() error {
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
	return r.cat.Close()
}
