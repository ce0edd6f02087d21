package backend

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"sync"

	"github.com/google/pprof/profile"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/coral-mesh/liveprof/internal/safe"
	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// CPU captures the runtime CPU profile of the whole process and reports it as
// a call graph. A CPU profile has no wall clock, so both wt and cpu of every
// entry hold the sampled CPU time. The root's cpu is replaced by the process
// CPU time over the capture when it can be read, and its mu records resident
// memory growth.
type CPU struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	running bool
	start   processUsage
}

// processUsage is a point-in-time reading of the process resource counters.
type processUsage struct {
	cpuSeconds float64
	rss        int64
	ok         bool
}

// NewCPU creates the CPU profile backend.
func NewCPU() *CPU {
	return &CPU{}
}

// Kind implements Variant.
func (c *CPU) Kind() Kind { return KindCPU }

// Available reports whether a CPU profile can be started right now. It fails
// when something else in the process already holds the CPU profiler.
func (c *CPU) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return true
	}
	if err := pprof.StartCPUProfile(io.Discard); err != nil {
		return false
	}
	pprof.StopCPUProfile()
	return true
}

// Begin starts the CPU profile.
func (c *CPU) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.New("cpu profile already running")
	}
	c.buf.Reset()
	if err := pprof.StartCPUProfile(&c.buf); err != nil {
		return fmt.Errorf("failed to start cpu profile: %w", err)
	}
	c.running = true
	c.start = readProcessUsage()
	return nil
}

// End stops the CPU profile and converts it. A capture too short to hold a
// single sample yields empty data.
func (c *CPU) End() (profiledata.Data, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil, errors.New("cpu profile not running")
	}
	pprof.StopCPUProfile()
	c.running = false
	end := readProcessUsage()

	prof, err := profile.Parse(&c.buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cpu profile: %w", err)
	}

	countIdx := sampleTypeIndex(prof, "samples", 0)
	nanosIdx := sampleTypeIndex(prof, "cpu", len(prof.SampleType)-1)
	data := profileToData(prof, countIdx, nanosIdx)
	creditSampledCPU(data)

	if len(data) > 0 && c.start.ok && end.ok {
		root := data[profiledata.RootKey]
		if cpu := int64((end.cpuSeconds - c.start.cpuSeconds) * 1e6); cpu > 0 {
			root.CPUTime = cpu
		}
		if grown := end.rss - c.start.rss; grown > 0 {
			root.Memory = grown
		}
		data[profiledata.RootKey] = root
	}

	return data, nil
}

// creditSampledCPU copies the sampled time of every entry into CPUTime.
func creditSampledCPU(data profiledata.Data) {
	for k, m := range data {
		m.CPUTime = m.WallTime
		data[k] = m
	}
}

func readProcessUsage() processUsage {
	p, err := process.NewProcess(int32(os.Getpid())) // #nosec G115 - pids fit in int32.
	if err != nil {
		return processUsage{}
	}
	times, err := p.Times()
	if err != nil {
		return processUsage{}
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return processUsage{}
	}
	rss, _ := safe.Uint64ToInt64(mem.RSS)
	return processUsage{
		cpuSeconds: times.User + times.System,
		rss:        rss,
		ok:         true,
	}
}
