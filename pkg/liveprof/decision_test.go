package liveprof

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		draws        []int
		divider      int
		totalDivider int
		want         Decision
	}{
		{name: "own trial succeeds", draws: []int{0}, divider: 10, totalDivider: 10, want: Own},
		{name: "aggregate trial succeeds", draws: []int{3, 0}, divider: 10, totalDivider: 10, want: Aggregate},
		{name: "both trials fail", draws: []int{3, 4}, divider: 10, totalDivider: 10, want: Skip},
		{name: "divider of one always enables", draws: []int{5}, divider: 1, totalDivider: 10, want: Own},
		{name: "total divider of one catches the rest", draws: []int{5, 9}, divider: 10, totalDivider: 1, want: Aggregate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := &scriptedRand{values: tt.draws}
			assert.Equal(t, tt.want, decide(rng, tt.divider, tt.totalDivider))
		})
	}
}

func TestDecide_SecondTrialOnlyAfterFirstFails(t *testing.T) {
	rng := &scriptedRand{values: []int{0, 0}}
	assert.Equal(t, Own, decide(rng, 10, 10))
	assert.Len(t, rng.values, 1, "aggregate trial must not draw after an own-label hit")
}

func TestDecide_Rates(t *testing.T) {
	const (
		trials       = 200_000
		divider      = 10
		totalDivider = 5
	)

	rng := newRand(1, 2)
	counts := map[Decision]int{}
	for i := 0; i < trials; i++ {
		counts[decide(rng, divider, totalDivider)]++
	}

	own := float64(counts[Own]) / trials
	aggregate := float64(counts[Aggregate]) / trials

	assert.InDelta(t, 1.0/divider, own, 0.005)
	assert.InDelta(t, float64(divider-1)/divider/totalDivider, aggregate, 0.005)
	assert.Equal(t, trials, counts[Own]+counts[Aggregate]+counts[Skip])
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "skip", Skip.String())
	assert.Equal(t, "own", Own.String())
	assert.Equal(t, "aggregate", Aggregate.String())
}
