package liveprof

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coral-mesh/liveprof/pkg/backend"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// scriptedRand returns the scripted values in order, then zeros.
type scriptedRand struct {
	values []int
}

func (r *scriptedRand) IntN(n int) int {
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[0]
	r.values = r.values[1:]
	return v % n
}

type fakeProfiler struct {
	mu          sync.Mutex
	kind        backend.Kind
	unavailable bool
	data        profiledata.Data
	beginErr    error
	endErr      error
	begins      int
	ends        int
}

func newFakeProfiler(data profiledata.Data) *fakeProfiler {
	return &fakeProfiler{kind: backend.KindCPU, data: data}
}

func (f *fakeProfiler) Kind() backend.Kind { return f.kind }
func (f *fakeProfiler) Available() bool { return !f.unavailable }

func (f *fakeProfiler) Begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.begins++
	return f.beginErr
}

func (f *fakeProfiler) End() (profiledata.Data, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	if f.endErr != nil {
		return nil, f.endErr
	}
	return f.data.Clone(), nil
}

func (f *fakeProfiler) counts() (begins, ends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.begins, f.ends
}

type fakeSampler struct {
	start   time.Time
	samples profiledata.Samples
	ends    int
}

func (f *fakeSampler) Kind() backend.Kind { return backend.KindSampler }
func (f *fakeSampler) Available() bool { return true }

func (f *fakeSampler) BeginSampling() (time.Time, error) {
	return f.start, nil
}

func (f *fakeSampler) EndSampling() (profiledata.Samples, error) {
	f.ends++
	return f.samples, nil
}

type savedProfile struct {
	app   string
	label string
	ts    time.Time
	data  profiledata.Data
}

type fakeStorage struct {
	mu     sync.Mutex
	err    error
	panic  bool
	saved  []savedProfile
	closed bool
}

func (s *fakeStorage) Save(_ context.Context, app, label string, ts time.Time, data profiledata.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panic {
		panic("storage exploded")
	}
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, savedProfile{app: app, label: label, ts: ts, data: data})
	return nil
}

func (s *fakeStorage) Close() error {
	s.closed = true
	return nil
}

func (s *fakeStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

var errBoom = errors.New("boom")

var testData = profiledata.Data{
	"main()":          {Count: 1, WallTime: 100},
	"main()==>handle": {Count: 1, WallTime: 90},
}

// newAlwaysOn returns a profiler that enables every session.
func newAlwaysOn(v backend.Variant, store Storage, opts ...Option) *Profiler {
	opts = append([]Option{WithCandidates(v)}, opts...)
	return New(Config{App: "app", Label: "label", Divider: 1, Storage: store}, opts...)
}
