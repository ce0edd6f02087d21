package backend

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sync"

	"github.com/google/pprof/profile"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// Block reports where goroutines blocked during the capture: each call edge
// gets the number of contentions and the time spent blocked.
type Block struct {
	rate int

	mu      sync.Mutex
	running bool
	before  stackTotals
}

// NewBlock creates the block profile backend. rate <= 0 records every
// blocking event.
func NewBlock(rate int) *Block {
	if rate <= 0 {
		rate = 1
	}
	return &Block{rate: rate}
}

// Kind implements Variant.
func (b *Block) Kind() Kind { return KindBlock }

// Available implements Variant.
func (b *Block) Available() bool {
	return pprof.Lookup("block") != nil
}

// Begin enables block profiling and snapshots the cumulative profile.
func (b *Block) Begin() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("block profile already running")
	}
	runtime.SetBlockProfileRate(b.rate)
	before, err := snapshotBlock()
	if err != nil {
		runtime.SetBlockProfileRate(0)
		return err
	}
	b.before = before
	b.running = true
	return nil
}

// End disables block profiling and returns the growth since Begin.
func (b *Block) End() (profiledata.Data, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil, errors.New("block profile not running")
	}
	b.running = false
	after, err := snapshotBlock()
	runtime.SetBlockProfileRate(0)
	if err != nil {
		return nil, err
	}
	return deltaToData(b.before, after), nil
}

func snapshotBlock() (stackTotals, error) {
	var buf bytes.Buffer
	if err := pprof.Lookup("block").WriteTo(&buf, 0); err != nil {
		return nil, fmt.Errorf("failed to write block profile: %w", err)
	}
	prof, err := profile.Parse(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse block profile: %w", err)
	}
	countIdx := sampleTypeIndex(prof, "contentions", 0)
	nanosIdx := sampleTypeIndex(prof, "delay", 1)
	return totalsOf(prof, countIdx, nanosIdx), nil
}
