package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeDecayScore_ZeroElapsed(t *testing.T) {
	now := time.Now()
	assert.InDelta(t, 1.0, TimeDecayScore(now, now, 72*time.Hour), 1e-9)
}

func TestTimeDecayScore_OneHalfLife(t *testing.T) {
	now := time.Now()
	then := now.Add(-72 * time.Hour)
	assert.InDelta(t, 0.5, TimeDecayScore(now, then, 72*time.Hour), 1e-6)
}

func TestTimeDecayScore_TwoHalfLives(t *testing.T) {
	now := time.Now()
	then := now.Add(-144 * time.Hour)
	assert.InDelta(t, 0.25, TimeDecayScore(now, then, 72*time.Hour), 1e-6)
}

func TestTimeDecayScore_FutureTimestampFlooredToNow(t *testing.T) {
	now := time.Now()
	future := now.Add(10 * time.Hour)
	assert.InDelta(t, 1.0, TimeDecayScore(now, future, 72*time.Hour), 1e-9)
}

func TestTimeDecayScore_Monotonic(t *testing.T) {
	now := time.Now()
	prev := 1.1
	for hours := 0; hours <= 300; hours += 12 {
		score := TimeDecayScore(now, now.Add(-time.Duration(hours)*time.Hour), 72*time.Hour)
		assert.Less(t, score, prev, "decay must strictly decrease with elapsed time")
		assert.Greater(t, score, 0.0)
		prev = score
	}
}

func TestLocationConsistencyScore(t *testing.T) {
	blr := &Location{City: "Bengaluru"}
	del := &Location{City: "Delhi"}

	tests := []struct {
		name string
		a, b *Location
		want float64
	}{
		{"same city", blr, &Location{City: "Bengaluru"}, LocationSameCity},
		{"different city", blr, del, LocationDifferentCity},
		{"a missing", nil, blr, LocationUnknown},
		{"b missing", blr, nil, LocationUnknown},
		{"both missing", nil, nil, LocationUnknown},
		{"blank city is missing", &Location{}, blr, LocationUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocationConsistencyScore(tt.a, tt.b))
		})
	}
}
