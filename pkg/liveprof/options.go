package liveprof

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coral-mesh/liveprof/pkg/backend"
)

// Option customizes a Profiler beyond its Config.
type Option func(*Profiler)

// WithCandidates replaces the backend candidates probed at construction.
func WithCandidates(candidates ...backend.Variant) Option {
	return func(p *Profiler) {
		p.candidates = append([]backend.Variant{}, candidates...)
	}
}

// WithRand sets the random source of the enable decision.
func WithRand(rng Rand) Option {
	return func(p *Profiler) {
		p.rng = rng
	}
}

// WithSeed makes the enable decision deterministic.
func WithSeed(seed1, seed2 uint64) Option {
	return WithRand(newRand(seed1, seed2))
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Profiler) {
		p.reg = reg
	}
}
