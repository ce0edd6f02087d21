// Package backend provides the low-level profiling capabilities a live
// profiling session can run on.
//
// Two shapes of capability exist. A Profiler captures a full call graph and
// returns it as profiledata.Data when stopped. A Sampler records timestamped
// stacks of the monitored goroutine and returns them in capture order; the
// caller turns them into profiledata.Data with profiledata.Aggregate.
//
// Candidates are checked in a fixed priority order and the first available one
// wins:
//
//	cpu      runtime CPU profile (call graph, CPU time, process CPU/RSS)
//	tracer   explicit Enter/exit instrumentation (exact counts and wall time)
//	block    runtime block profile (contentions and delay per call graph)
//	sampler  periodic stack sampling of the monitored goroutine
package backend

import (
	"fmt"
	"strings"
	"time"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Kind names a backend variant.
type Kind string

const (
	KindCPU     Kind = "cpu"
	KindTracer  Kind = "tracer"
	KindBlock   Kind = "block"
	KindSampler Kind = "sampler"
)

// Variant is a profiling capability. Every Variant is also either a Profiler
// or a Sampler.
type Variant interface {
	Kind() Kind
	// Available reports whether the capability can be used in this process.
	Available() bool
}

// Profiler is a full call-graph capability.
type Profiler interface {
	Variant
	Begin() error
	End() (profiledata.Data, error)
}

// Sampler is an interval stack sampling capability.
type Sampler interface {
	Variant
	// BeginSampling starts sampling and returns the instant it started.
	BeginSampling() (time.Time, error)
	// EndSampling stops sampling and returns the samples in capture order.
	EndSampling() (profiledata.Samples, error)
}

// Options configures the default candidate list.
type Options struct {
	// Tracer adds the instrumentation tracer to the candidates. Nil leaves it out.
	Tracer *Tracer

	// SamplingInterval is the sampler period (default: 10ms).
	SamplingInterval time.Duration

	// SamplingDepth caps the frames kept per sample (default: 200).
	SamplingDepth int

	// BlockProfileRate is passed to runtime.SetBlockProfileRate while the block
	// backend runs (default: 1, every blocking event).
	BlockProfileRate int
}

// Defaults returns the built-in candidates in priority order.
func Defaults(opts Options) []Variant {
	candidates := []Variant{NewCPU()}
	if opts.Tracer != nil {
		candidates = append(candidates, opts.Tracer)
	}
	candidates = append(candidates,
		NewBlock(opts.BlockProfileRate),
		NewSampler(opts.SamplingInterval, opts.SamplingDepth),
	)
	return candidates
}

// DetectCapabilities returns the available candidates, keeping their order.
func DetectCapabilities(candidates []Variant) []Variant {
	var available []Variant
	for _, v := range candidates {
		if v != nil && v.Available() {
			available = append(available, v)
		}
	}
	return available
}

// Detect returns the first available candidate, or nil when none is.
func Detect(candidates []Variant) Variant {
	for _, v := range candidates {
		if v != nil && v.Available() {
			return v
		}
	}
	return nil
}

// Find returns the candidate of the given kind.
func Find(candidates []Variant, kind Kind) (Variant, bool) {
	for _, v := range candidates {
		if v != nil && v.Kind() == kind {
			return v, true
		}
	}
	return nil, false
}

// ParseKind parses a backend name. The empty string and "auto" return "".
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", "auto":
		return "", nil
	case KindCPU, KindTracer, KindBlock, KindSampler:
		return k, nil
	default:
		return "", fmt.Errorf("unknown backend %q (valid: auto, cpu, tracer, block, sampler)", s)
	}
}
