package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// SQLiteLog persists feedback events in SQLite. Appends are
// insert-or-ignore on request id, so replaying a confirmation is a no-op.
type SQLiteLog struct {
	db *sql.DB
}

var _ EventLog = (*SQLiteLog)(nil)

// NewSQLiteLog creates a SQLite-backed event log on an existing connection.
func NewSQLiteLog(db *sql.DB) (*SQLiteLog, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := InitSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteLog{db: db}, nil
}

// InitSchema creates the feedback events table if it does not exist.
func InitSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback_events (
		request_id TEXT PRIMARY KEY,
		correct_object_id TEXT NOT NULL,
		branches_used TEXT NOT NULL DEFAULT '[]',
		was_correct INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create feedback schema: %w", err)
	}
	return nil
}

// Append stores the event, keeping the first write for a request id.
func (l *SQLiteLog) Append(ctx context.Context, ev Event) error {
	if ev.RequestID == "" {
		return fmt.Errorf("request id is required")
	}
	branches, err := json.Marshal(ev.BranchesUsed)
	if err != nil {
		return fmt.Errorf("encode branches: %w", err)
	}
	wasCorrect := 0
	if ev.WasCorrect {
		wasCorrect = 1
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO feedback_events
			(request_id, correct_object_id, branches_used, was_correct, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(request_id) DO NOTHING
	`, ev.RequestID, ev.CorrectObjectID, string(branches), wasCorrect, ev.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("append feedback event %q: %w", ev.RequestID, err)
	}
	return nil
}

// Get returns the stored event for a request id, or sql.ErrNoRows wrapped.
func (l *SQLiteLog) Get(ctx context.Context, requestID string) (Event, error) {
	var (
		ev       Event
		branches string
		correct  int
		created  int64
	)
	err := l.db.QueryRowContext(ctx, `
		SELECT request_id, correct_object_id, branches_used, was_correct, created_at
		FROM feedback_events WHERE request_id = ?
	`, requestID).Scan(&ev.RequestID, &ev.CorrectObjectID, &branches, &correct, &created)
	if err != nil {
		return Event{}, fmt.Errorf("get feedback event %q: %w", requestID, err)
	}
	if err := json.Unmarshal([]byte(branches), &ev.BranchesUsed); err != nil {
		return Event{}, fmt.Errorf("decode branches: %w", err)
	}
	ev.WasCorrect = correct == 1
	ev.Timestamp = time.Unix(created, 0)
	return ev, nil
}

// MemoryLog is an in-process EventLog for tests.
type MemoryLog struct {
	mu     sync.Mutex
	events map[string]Event
}

var _ EventLog = (*MemoryLog)(nil)

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{events: make(map[string]Event)}
}

// Append keeps the first event per request id.
func (l *MemoryLog) Append(ctx context.Context, ev Event) error {
	if ev.RequestID == "" {
		return fmt.Errorf("request id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.events[ev.RequestID]; !exists {
		l.events[ev.RequestID] = ev
	}
	return nil
}

// Get returns the stored event, or an error if absent.
func (l *MemoryLog) Get(ctx context.Context, requestID string) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, ok := l.events[requestID]
	if !ok {
		return Event{}, fmt.Errorf("feedback event %q not found", requestID)
	}
	return ev, nil
}
