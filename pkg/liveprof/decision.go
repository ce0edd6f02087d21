package liveprof

import (
	"math/rand/v2"
	"time"
)

// AggregateLabel is the label of sessions enabled by the total divider trial.
const AggregateLabel = "All"

// Decision is the outcome of the enable decision for one execution.
type Decision int

const (
	// Skip leaves the session idle.
	Skip Decision = iota
	// Own enables the session under the configured label.
	Own
	// Aggregate enables the session under AggregateLabel.
	Aggregate
)

func (d Decision) String() string {
	switch d {
	case Own:
		return "own"
	case Aggregate:
		return "aggregate"
	default:
		return "skip"
	}
}

// Rand is the random source of the decision engine. IntN returns a uniform
// value in [0, n). *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

func newRand(seed1, seed2 uint64) Rand {
	return rand.New(rand.NewPCG(seed1, seed2))
}

func clockSeededRand() Rand {
	now := uint64(time.Now().UnixNano())
	return newRand(now, now>>32|now<<32)
}

// decide runs the two sampling trials. The aggregate trial only runs when
// the own-label trial fails, so at most one of them applies per execution.
func decide(rng Rand, divider, totalDivider int) Decision {
	if rng.IntN(divider)+1 == 1 {
		return Own
	}
	if rng.IntN(totalDivider)+1 == 1 {
		return Aggregate
	}
	return Skip
}
