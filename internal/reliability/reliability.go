// Package reliability tracks per-branch trustworthiness as Beta(α,β)
// beliefs updated online from confirmed feedback. The mean α/(α+β)
// converges to a branch's empirical correctness rate and is read by the
// fusion engine to discount historically unreliable signal sources.
package reliability

import "context"

// Record is the Beta-distributed belief for one branch. Alpha counts
// successes, Beta counts failures; both start from a prior and stay
// strictly positive.
type Record struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
}

// Mean returns α/(α+β), the current best estimate of the branch's
// long-run correctness rate.
func (r Record) Mean() float64 {
	total := r.Alpha + r.Beta
	if total <= 0 {
		return 0.5
	}
	return r.Alpha / total
}

// DefaultRecord is the prior for branches with no configured history:
// an uninformative Beta(5,5) centered at 0.5 with moderate pseudo-count,
// so a new branch neither dominates nor vanishes until feedback arrives.
var DefaultRecord = Record{Alpha: 5.0, Beta: 5.0}

// DefaultPriors are the tuned priors for the production branch set.
// Branches with stronger offline validation start with more optimistic,
// more concentrated beliefs.
func DefaultPriors() map[string]Record {
	return map[string]Record{
		"manufacturing_signature": {Alpha: 8.0, Beta: 2.0},
		"ghost_context":           {Alpha: 7.0, Beta: 3.0},
		"partial_completion":      {Alpha: 5.0, Beta: 5.0},
		"negative_space":          {Alpha: 7.0, Beta: 3.0},
		"visual_semantics":        {Alpha: 6.0, Beta: 4.0},
	}
}

// Store holds the reliability belief table.
//
// Snapshot is read per analyze request and must fail open: implementations
// return the prior table when the backing store is unreachable, never an
// empty map. Update applies one conjugate Bernoulli–Beta increment and must
// be atomic per branch — concurrent updates to the same branch may not lose
// increments.
type Store interface {
	// Snapshot returns the current belief for every known branch,
	// seeding (and persisting) priors for branches not yet present.
	Snapshot(ctx context.Context) (map[string]Record, error)

	// Update increments α (wasCorrect) or β (!wasCorrect) for the branch,
	// seeding it from the prior first if unseen, and returns the new record.
	Update(ctx context.Context, branch string, wasCorrect bool) (Record, error)
}

// priorFor returns the configured prior for a branch, falling back to
// DefaultRecord for names outside the known set.
func priorFor(priors map[string]Record, branch string) Record {
	if r, ok := priors[branch]; ok {
		return r
	}
	return DefaultRecord
}
