package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Tracer is a call-graph profiler driven by explicit instrumentation:
//
//	func handle(w http.ResponseWriter, r *http.Request) {
//	    defer tracer.Enter("handle")()
//	    ...
//	}
//
// Each goroutine has its own call stack, so concurrent handlers never become
// each other's callers. The outermost Enter of a goroutine hangs off the
// synthetic root.
//
// Calls are recorded only while a capture is running; otherwise Enter costs a
// mutex round trip and returns a no-op.
type Tracer struct {
	now  func() time.Time
	self func() uint64

	mu      sync.Mutex
	running bool
	gen     uint64
	started time.Time
	stacks  map[uint64][]string
	data    profiledata.Data
}

// NewTracer creates an instrumentation tracer.
func NewTracer() *Tracer {
	return &Tracer{now: time.Now, self: currentGoroutineID}
}

// Kind implements Variant.
func (t *Tracer) Kind() Kind { return KindTracer }

// Available implements Variant. A tracer is available once the host has
// created it, since that is what instruments the code.
func (t *Tracer) Available() bool { return t != nil }

func noop() {}

// Enter records entry into name and returns the func that records the exit.
// The exit func pops the frame from the stack of the goroutine that entered.
func (t *Tracer) Enter(name string) func() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return noop
	}
	id := t.self()
	stack := t.stacks[id]
	parent := profiledata.RootKey
	if n := len(stack); n > 0 {
		parent = stack[n-1]
	}
	stack = append(stack, name)
	t.stacks[id] = stack
	depth := len(stack)
	gen := t.gen
	start := t.now()
	t.mu.Unlock()

	return func() {
		elapsed := t.now().Sub(start).Microseconds()

		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.running || t.gen != gen {
			return
		}
		t.data.Credit(profiledata.EdgeKey(parent, name), 1, elapsed)

		stack := t.stacks[id]
		if depth-1 < len(stack) {
			stack = stack[:depth-1]
		}
		if len(stack) == 0 {
			delete(t.stacks, id)
		} else {
			t.stacks[id] = stack
		}
	}
}

// Begin starts recording.
func (t *Tracer) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return errors.New("tracer already running")
	}
	t.running = true
	t.gen++
	t.started = t.now()
	t.stacks = make(map[uint64][]string)
	t.data = make(profiledata.Data)
	return nil
}

// End stops recording. The root is credited with one call lasting the whole
// capture.
func (t *Tracer) End() (profiledata.Data, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil, errors.New("tracer not running")
	}
	t.running = false
	t.data.Credit(profiledata.RootKey, 1, t.now().Sub(t.started).Microseconds())
	data := t.data
	t.data = nil
	t.stacks = nil
	return data, nil
}
