// Package feedback turns user-confirmed outcomes into learning signals:
// reliability updates for the branches involved, a confidence nudge on the
// matched object, and an immutable audit event.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relinkhq/relink/internal/reliability"
)

// Confidence nudge sizes. The penalty is deliberately larger than the
// reward so false positives are unlearned faster than correct matches
// are reinforced.
const (
	ConfidenceReward  = 0.05
	ConfidencePenalty = 0.08
)

// Event is one confirmed outcome. Write-once, keyed by RequestID.
type Event struct {
	RequestID       string    `json:"request_id"`
	CorrectObjectID string    `json:"correct_object_id"`
	BranchesUsed    []string  `json:"branches_used"`
	WasCorrect      bool      `json:"was_correct"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventLog appends and reads feedback events. Append must be write-once
// per RequestID: replaying the same confirmation may not double-count.
type EventLog interface {
	Append(ctx context.Context, ev Event) error
	Get(ctx context.Context, requestID string) (Event, error)
}

// ObjectConfidence is the slice of the catalog the loop needs: an atomic
// clamped confidence adjustment.
type ObjectConfidence interface {
	AdjustConfidence(ctx context.Context, objectID string, delta float64) (float64, error)
}

// Loop applies feedback events. Each of its three effects is best-effort:
// a failing reliability store must not block the confidence nudge or the
// audit record, since each independently improves future requests.
type Loop struct {
	reliability reliability.Store
	objects     ObjectConfidence
	log         EventLog
	logger      *slog.Logger
}

// NewLoop wires the feedback loop to its collaborators.
func NewLoop(rel reliability.Store, objects ObjectConfidence, log EventLog, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{reliability: rel, objects: objects, log: log, logger: logger}
}

// Apply processes one confirmed outcome: reliability updates first, then
// the object confidence nudge, then the audit append. Failures are logged
// and joined into the returned error for observability, but every step
// runs regardless of earlier failures. Past fusion results are never
// touched; only future requests observe the updates.
func (l *Loop) Apply(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	var errs []error

	for _, branch := range ev.BranchesUsed {
		if _, err := l.reliability.Update(ctx, branch, ev.WasCorrect); err != nil {
			l.logger.Warn("reliability update failed", "branch", branch, "error", err)
			errs = append(errs, fmt.Errorf("reliability %q: %w", branch, err))
		}
	}

	delta := ConfidenceReward
	if !ev.WasCorrect {
		delta = -ConfidencePenalty
	}
	if _, err := l.objects.AdjustConfidence(ctx, ev.CorrectObjectID, delta); err != nil {
		l.logger.Warn("object confidence update failed",
			"object_id", ev.CorrectObjectID, "error", err)
		errs = append(errs, fmt.Errorf("object %q: %w", ev.CorrectObjectID, err))
	}

	if err := l.log.Append(ctx, ev); err != nil {
		l.logger.Warn("feedback event append failed",
			"request_id", ev.RequestID, "error", err)
		errs = append(errs, fmt.Errorf("event %q: %w", ev.RequestID, err))
	}

	return errors.Join(errs...)
}
