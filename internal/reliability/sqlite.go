package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// SQLiteStore persists the belief table in SQLite. It expects a *sql.DB
// opened with the modernc driver in WAL mode (see catalog.Open), so
// multiple processes can read and update concurrently.
//
// Snapshot fails open: on any query error the configured priors are
// returned and the error is logged, never surfaced to the fusion path.
type SQLiteStore struct {
	db     *sql.DB
	priors map[string]Record
	log    *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a SQLite-backed Store on an existing connection.
// Nil priors means DefaultPriors; nil logger means slog.Default().
func NewSQLiteStore(db *sql.DB, priors map[string]Record, log *slog.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if priors == nil {
		priors = DefaultPriors()
	}
	if log == nil {
		log = slog.Default()
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, priors: priors, log: log}, nil
}

// InitSchema creates the reliability table if it does not exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS branch_reliability (
		branch_name TEXT PRIMARY KEY,
		alpha REAL NOT NULL CHECK (alpha > 0),
		beta REAL NOT NULL CHECK (beta > 0),
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create reliability schema: %w", err)
	}
	return nil
}

// Snapshot returns the persisted belief table, seeding priors for any
// configured branch not yet stored. Unreachable storage degrades to the
// prior table so fusion is never blocked on the database.
func (s *SQLiteStore) Snapshot(ctx context.Context) (map[string]Record, error) {
	if err := s.seedMissing(ctx); err != nil {
		s.log.Warn("reliability seed failed, serving priors", "error", err)
		return s.priorTable(), nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT branch_name, alpha, beta FROM branch_reliability`)
	if err != nil {
		s.log.Warn("reliability read failed, serving priors", "error", err)
		return s.priorTable(), nil
	}
	defer rows.Close()

	out := make(map[string]Record, len(s.priors))
	for rows.Next() {
		var name string
		var rec Record
		if err := rows.Scan(&name, &rec.Alpha, &rec.Beta); err != nil {
			s.log.Warn("reliability scan failed, serving priors", "error", err)
			return s.priorTable(), nil
		}
		out[name] = rec
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("reliability iteration failed, serving priors", "error", err)
		return s.priorTable(), nil
	}

	// Priors for configured branches the table has not seen yet.
	for name, r := range s.priors {
		if _, ok := out[name]; !ok {
			out[name] = r
		}
	}
	return out, nil
}

// Update applies one conjugate increment as a single upsert statement.
// The increment happens inside the database, so concurrent updates to the
// same branch serialize there instead of racing a read-modify-write in Go.
func (s *SQLiteStore) Update(ctx context.Context, branch string, wasCorrect bool) (Record, error) {
	prior := priorFor(s.priors, branch)

	dAlpha, dBeta := 0.0, 1.0
	if wasCorrect {
		dAlpha, dBeta = 1.0, 0.0
	}

	var rec Record
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO branch_reliability (branch_name, alpha, beta)
		VALUES (?, ?, ?)
		ON CONFLICT(branch_name) DO UPDATE SET
			alpha = alpha + excluded.alpha - ?,
			beta = beta + excluded.beta - ?,
			updated_at = CURRENT_TIMESTAMP
		RETURNING alpha, beta
	`, branch, prior.Alpha+dAlpha, prior.Beta+dBeta, prior.Alpha, prior.Beta).Scan(&rec.Alpha, &rec.Beta)
	if err != nil {
		return Record{}, fmt.Errorf("update reliability for %q: %w", branch, err)
	}
	return rec, nil
}

// seedMissing persists priors for configured branches absent from the table.
func (s *SQLiteStore) seedMissing(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO branch_reliability (branch_name, alpha, beta)
		VALUES (?, ?, ?)
		ON CONFLICT(branch_name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare seed statement: %w", err)
	}
	defer stmt.Close()

	for name, r := range s.priors {
		if _, err := stmt.ExecContext(ctx, name, r.Alpha, r.Beta); err != nil {
			return fmt.Errorf("seed branch %q: %w", name, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) priorTable() map[string]Record {
	out := make(map[string]Record, len(s.priors))
	for name, r := range s.priors {
		out[name] = r
	}
	return out
}
