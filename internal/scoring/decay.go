package scoring

import (
	"math"
	"time"
)

// Location is the coarse location metadata attached to queries and objects.
// Only City participates in scoring today; Lat/Lng are carried for a future
// geodistance upgrade.
type Location struct {
	City string  `json:"city"`
	Lat  float64 `json:"lat,omitempty"`
	Lng  float64 `json:"lng,omitempty"`
}

// Location consistency outcomes. Coarse by design: same city is strong
// evidence, a missing location is neutral, a different city is a penalty
// but not a veto (objects travel).
const (
	LocationSameCity      = 0.95
	LocationUnknown       = 0.70
	LocationDifferentCity = 0.30
)

// TimeDecayScore returns an exponential freshness score in (0, 1]:
// 1.0 at zero elapsed time, halving every halfLife. Timestamps in the
// future are floored to "now" so clock skew can never produce a score
// above 1.
func TimeDecayScore(now, then time.Time, halfLife time.Duration) float64 {
	elapsed := now.Sub(then)
	if elapsed < 0 {
		elapsed = 0
	}
	if halfLife <= 0 {
		halfLife = time.Nanosecond
	}
	lambda := math.Ln2 / halfLife.Hours()
	return math.Exp(-lambda * elapsed.Hours())
}

// LocationConsistencyScore scores agreement between two locations.
// Either side missing (nil or blank city) is neutral, not a penalty:
// most reports simply lack location metadata.
func LocationConsistencyScore(a, b *Location) float64 {
	if a == nil || b == nil || a.City == "" || b.City == "" {
		return LocationUnknown
	}
	if a.City == b.City {
		return LocationSameCity
	}
	return LocationDifferentCity
}
