// Package catalog persists historical objects and their sightings in
// SQLite and serves them to the ranking engine as candidates. It is the
// system's object store collaborator: ranking reads it, the feedback loop
// nudges object confidence through it.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/relinkhq/relink/internal/ranking"
	"github.com/relinkhq/relink/internal/scoring"
)

// DefaultObjectCacheSize bounds the GetObject read cache. Objects are a
// few KB of embeddings each, so 512 entries stays in the low MBs.
const DefaultObjectCacheSize = 512

// Catalog is a SQLite-backed object store with an LRU read cache.
// Opening acquires a file lock next to the database so two processes
// never initialize the same catalog concurrently.
type Catalog struct {
	db    *sql.DB
	cache *lru.Cache[string, ranking.ObjectRecord]
	lock  *flock.Flock
	log   *slog.Logger
}

var _ ranking.CandidateSource = (*Catalog)(nil)

// Open opens (creating if needed) the catalog database at path.
// Empty path opens an in-memory catalog for tests.
func Open(path string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}

	var dsn string
	var fl *flock.Flock
	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
		fl = flock.New(path + ".lock")
		if err := fl.Lock(); err != nil {
			return nil, fmt.Errorf("acquire catalog lock: %w", err)
		}
		// WAL for concurrent readers alongside the writer.
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if fl != nil {
			_ = fl.Unlock()
		}
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	if path == "" {
		// Every pooled connection to :memory: would open its own empty
		// database; pin the pool to one.
		db.SetMaxOpenConns(1)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		if fl != nil {
			_ = fl.Unlock()
		}
		return nil, err
	}

	cache, _ := lru.New[string, ranking.ObjectRecord](DefaultObjectCacheSize)

	return &Catalog{db: db, cache: cache, lock: fl, log: log}, nil
}

// DB exposes the underlying connection so sibling stores (reliability,
// feedback log) can share one database file.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// Close releases the database and the cross-process lock.
func (c *Catalog) Close() error {
	err := c.db.Close()
	if c.lock != nil {
		_ = c.lock.Unlock()
	}
	return err
}

func initSchema(db *sql.DB) error {
	schema := `
	-- One row per stable object identity.
	CREATE TABLE IF NOT EXISTS objects (
		object_id TEXT PRIMARY KEY,
		embeddings TEXT NOT NULL DEFAULT '{}',
		city TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL,
		object_confidence REAL NOT NULL DEFAULT 0.5
			CHECK (object_confidence >= 0 AND object_confidence <= 1)
	);
	CREATE INDEX IF NOT EXISTS idx_objects_updated ON objects(updated_at DESC);

	-- One row per capture/observation event.
	CREATE TABLE IF NOT EXISTS sightings (
		sighting_id TEXT PRIMARY KEY,
		object_id TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sightings_object ON sightings(object_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	return nil
}

// UpsertObject inserts or replaces an object record.
func (c *Catalog) UpsertObject(ctx context.Context, obj ranking.ObjectRecord) error {
	if obj.ObjectID == "" {
		return fmt.Errorf("object id is required")
	}

	emb, err := json.Marshal(obj.Embeddings)
	if err != nil {
		return fmt.Errorf("encode embeddings for %q: %w", obj.ObjectID, err)
	}

	city := ""
	if obj.Location != nil {
		city = obj.Location.City
	}
	updated := obj.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO objects (object_id, embeddings, city, updated_at, object_confidence)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(object_id) DO UPDATE SET
			embeddings = excluded.embeddings,
			city = excluded.city,
			updated_at = excluded.updated_at,
			object_confidence = excluded.object_confidence
	`, obj.ObjectID, string(emb), city, updated.Unix(), clamp01(obj.ObjectConfidence))
	if err != nil {
		return fmt.Errorf("upsert object %q: %w", obj.ObjectID, err)
	}

	c.cache.Remove(obj.ObjectID)
	return nil
}

// GetObject returns one object, or sql.ErrNoRows wrapped if absent.
func (c *Catalog) GetObject(ctx context.Context, id string) (ranking.ObjectRecord, error) {
	if obj, ok := c.cache.Get(id); ok {
		return obj, nil
	}

	row := c.db.QueryRowContext(ctx, `
		SELECT object_id, embeddings, city, updated_at, object_confidence
		FROM objects WHERE object_id = ?
	`, id)

	obj, err := scanObject(row)
	if err != nil {
		return ranking.ObjectRecord{}, fmt.Errorf("get object %q: %w", id, err)
	}

	c.cache.Add(id, obj)
	return obj, nil
}

// AddSighting appends one observation event for an object.
func (c *Catalog) AddSighting(ctx context.Context, sightingID, objectID string, payload map[string]any) error {
	if sightingID == "" || objectID == "" {
		return fmt.Errorf("sighting id and object id are required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode sighting payload: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO sightings (sighting_id, object_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, sightingID, objectID, string(body), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("add sighting %q: %w", sightingID, err)
	}
	return nil
}

// AdjustConfidence nudges an object's confidence by delta, clamped to
// [0,1], inside the database so concurrent feedback never races a
// read-modify-write in Go. Returns the new confidence.
func (c *Catalog) AdjustConfidence(ctx context.Context, id string, delta float64) (float64, error) {
	var conf float64
	err := c.db.QueryRowContext(ctx, `
		UPDATE objects
		SET object_confidence = MAX(0.0, MIN(1.0, object_confidence + ?)),
			updated_at = ?
		WHERE object_id = ?
		RETURNING object_confidence
	`, delta, time.Now().Unix(), id).Scan(&conf)
	if err != nil {
		return 0, fmt.Errorf("adjust confidence for %q: %w", id, err)
	}

	c.cache.Remove(id)
	return conf, nil
}

// Candidates implements ranking.CandidateSource: the limit most recently
// updated objects, newest first.
func (c *Catalog) Candidates(ctx context.Context, limit int) ([]ranking.ObjectRecord, error) {
	if limit <= 0 {
		limit = ranking.DefaultFetchLimit
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT object_id, embeddings, city, updated_at, object_confidence
		FROM objects
		ORDER BY updated_at DESC, object_id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []ranking.ObjectRecord
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanObject(s scanner) (ranking.ObjectRecord, error) {
	var (
		obj     ranking.ObjectRecord
		embJSON string
		city    string
		updated int64
	)
	if err := s.Scan(&obj.ObjectID, &embJSON, &city, &updated, &obj.ObjectConfidence); err != nil {
		return ranking.ObjectRecord{}, err
	}
	if err := json.Unmarshal([]byte(embJSON), &obj.Embeddings); err != nil {
		return ranking.ObjectRecord{}, fmt.Errorf("decode embeddings: %w", err)
	}
	if city != "" {
		obj.Location = &scoring.Location{City: city}
	}
	obj.UpdatedAt = time.Unix(updated, 0)
	return obj, nil
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
