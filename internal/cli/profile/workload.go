package profile

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/coral-mesh/liveprof/pkg/backend"
)

// workload is the program profiled by the demo command: a request handler
// that decodes its input, burns CPU and then waits on a worker.
type workload struct {
	tracer *backend.Tracer
	work   time.Duration
}

func newWorkload(tracer *backend.Tracer, work time.Duration) *workload {
	if work <= 0 {
		work = 100 * time.Millisecond
	}
	return &workload{tracer: tracer, work: work}
}

// handle runs one execution.
func (w *workload) handle(ctx context.Context) error {
	defer w.tracer.Enter("handle")()

	fields := w.decode("id=42,user=demo,items=3,region=eu")
	n, err := strconv.Atoi(fields["items"])
	if err != nil || n < 1 {
		n = 1
	}

	for i := 0; i < n; i++ {
		w.compute(w.work * 3 / 4 / time.Duration(n))
	}
	return w.wait(ctx, w.work/4)
}

func (w *workload) decode(raw string) map[string]string {
	defer w.tracer.Enter("decode")()

	fields := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, _ := strings.Cut(pair, "=")
		fields[k] = v
	}
	return fields
}

// compute counts primes until d has elapsed.
//
//go:noinline
func (w *workload) compute(d time.Duration) int {
	defer w.tracer.Enter("compute")()

	deadline := time.Now().Add(d)
	primes := 0
	for n := 2; time.Now().Before(deadline); n++ {
		if isPrime(n) {
			primes++
		}
	}
	return primes
}

func isPrime(n int) bool {
	for d := 2; d*d <= n; d++ {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// wait blocks on a channel fed by a worker goroutine.
func (w *workload) wait(ctx context.Context, d time.Duration) error {
	defer w.tracer.Enter("wait")()

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(d)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		<-done
		return ctx.Err()
	}
}
