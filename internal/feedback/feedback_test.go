package feedback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relinkhq/relink/internal/reliability"
)

// --- Test Helpers ---

type fakeObjects struct {
	mu         sync.Mutex
	confidence map[string]float64
	err        error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{confidence: map[string]float64{"obj-1": 0.5}}
}

func (f *fakeObjects) AdjustConfidence(ctx context.Context, id string, delta float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	conf, ok := f.confidence[id]
	if !ok {
		return 0, fmt.Errorf("object %q not found", id)
	}
	conf += delta
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	f.confidence[id] = conf
	return conf, nil
}

func testEvent(wasCorrect bool) Event {
	return Event{
		RequestID:       "req-1",
		CorrectObjectID: "obj-1",
		BranchesUsed:    []string{"visual_semantics", "negative_space"},
		WasCorrect:      wasCorrect,
		Timestamp:       time.Now(),
	}
}

// --- Loop behavior ---

func TestLoop_CorrectFeedbackRaisesReliabilityMean(t *testing.T) {
	ctx := context.Background()
	rel := reliability.NewMemoryStore(nil)
	objects := newFakeObjects()
	loop := NewLoop(rel, objects, NewMemoryLog(), nil)

	before, err := rel.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, loop.Apply(ctx, testEvent(true)))

	after, err := rel.Snapshot(ctx)
	require.NoError(t, err)
	for _, branch := range []string{"visual_semantics", "negative_space"} {
		assert.Greater(t, after[branch].Mean(), before[branch].Mean(), branch)
	}
}

func TestLoop_IncorrectFeedbackLowersReliabilityMean(t *testing.T) {
	ctx := context.Background()
	rel := reliability.NewMemoryStore(nil)
	loop := NewLoop(rel, newFakeObjects(), NewMemoryLog(), nil)

	before, err := rel.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, loop.Apply(ctx, testEvent(false)))

	after, err := rel.Snapshot(ctx)
	require.NoError(t, err)
	assert.Less(t, after["visual_semantics"].Mean(), before["visual_semantics"].Mean())
}

func TestLoop_ConfidenceNudgeAsymmetry(t *testing.T) {
	ctx := context.Background()

	objects := newFakeObjects()
	loop := NewLoop(reliability.NewMemoryStore(nil), objects, NewMemoryLog(), nil)
	require.NoError(t, loop.Apply(ctx, testEvent(true)))
	assert.InDelta(t, 0.55, objects.confidence["obj-1"], 1e-9)

	objects = newFakeObjects()
	loop = NewLoop(reliability.NewMemoryStore(nil), objects, NewMemoryLog(), nil)
	require.NoError(t, loop.Apply(ctx, testEvent(false)))
	// The penalty outweighs the reward so false positives unlearn faster.
	assert.InDelta(t, 0.42, objects.confidence["obj-1"], 1e-9)
}

func TestLoop_AppendsAuditEvent(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog()
	loop := NewLoop(reliability.NewMemoryStore(nil), newFakeObjects(), log, nil)

	ev := testEvent(true)
	require.NoError(t, loop.Apply(ctx, ev))

	stored, err := log.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, ev.CorrectObjectID, stored.CorrectObjectID)
	assert.Equal(t, ev.BranchesUsed, stored.BranchesUsed)
	assert.True(t, stored.WasCorrect)
}

func TestLoop_FailingObjectStoreDoesNotBlockOtherEffects(t *testing.T) {
	ctx := context.Background()
	rel := reliability.NewMemoryStore(nil)
	objects := newFakeObjects()
	objects.err = fmt.Errorf("store unreachable")
	log := NewMemoryLog()
	loop := NewLoop(rel, objects, log, nil)

	err := loop.Apply(ctx, testEvent(true))
	require.Error(t, err, "failures surface for observability")

	// Reliability update and audit append still happened.
	after, snapErr := rel.Snapshot(ctx)
	require.NoError(t, snapErr)
	assert.Greater(t, after["visual_semantics"].Mean(), 0.6)
	_, getErr := log.Get(ctx, "req-1")
	assert.NoError(t, getErr)
}

func TestMemoryLog_WriteOnce(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryLog()

	first := testEvent(true)
	require.NoError(t, log.Append(ctx, first))

	replay := testEvent(false)
	require.NoError(t, log.Append(ctx, replay))

	stored, err := log.Get(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, stored.WasCorrect, "replayed event must not overwrite the original")
}
