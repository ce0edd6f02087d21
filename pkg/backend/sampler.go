package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

const (
	// DefaultSamplingInterval is the sampler period.
	DefaultSamplingInterval = 10 * time.Millisecond

	// DefaultSamplingDepth caps the number of frames kept per sample.
	DefaultSamplingDepth = 200
)

// StackSampler periodically records the stack of the goroutine that started
// sampling. It needs no runtime support beyond stack dumps, so it is always
// available and serves as the last-resort backend.
type StackSampler struct {
	interval time.Duration
	depth    int

	now  func() time.Time
	dump func() []byte
	self func() uint64

	mu      sync.Mutex
	running bool
	target  uint64
	stop    chan struct{}
	done    chan struct{}
	samples profiledata.Samples
}

// NewSampler creates the sampling backend. Zero values select the defaults.
func NewSampler(interval time.Duration, depth int) *StackSampler {
	if interval <= 0 {
		interval = DefaultSamplingInterval
	}
	if depth <= 0 {
		depth = DefaultSamplingDepth
	}
	return &StackSampler{
		interval: interval,
		depth:    depth,
		now:      time.Now,
		dump:     allGoroutineStacks,
		self:     currentGoroutineID,
	}
}

// Kind implements Variant.
func (s *StackSampler) Kind() Kind { return KindSampler }

// Available implements Variant.
func (s *StackSampler) Available() bool { return true }

// BeginSampling starts sampling the calling goroutine.
func (s *StackSampler) BeginSampling() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return time.Time{}, errors.New("sampler already running")
	}
	s.running = true
	s.target = s.self()
	s.samples = nil
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	started := s.now()

	go s.loop(s.target, s.stop, s.done)

	return started, nil
}

// EndSampling stops the sampling goroutine, waits for it to exit and returns
// the collected samples.
func (s *StackSampler) EndSampling() (profiledata.Samples, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil, errors.New("sampler not running")
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	samples := s.samples
	s.samples = nil
	return samples, nil
}

func (s *StackSampler) loop(target uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frames := goroutineFrames(s.dump(), target, s.depth)
			sample := profiledata.Sample{CapturedAt: s.now(), Stack: frames}

			s.mu.Lock()
			s.samples = append(s.samples, sample)
			s.mu.Unlock()
		}
	}
}
