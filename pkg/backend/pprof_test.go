package backend

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

type testSample struct {
	leafFirst []string
	count     int64
	nanos     int64
}

// buildTestProfile creates a synthetic two-valued pprof profile.
func buildTestProfile(t *testing.T, countType, nanosType string, samples []testSample) *profile.Profile {
	t.Helper()

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: countType, Unit: "count"},
			{Type: nanosType, Unit: "nanoseconds"},
		},
	}

	funcs := make(map[string]*profile.Function)
	for _, s := range samples {
		var locs []*profile.Location
		for _, name := range s.leafFirst {
			fn, ok := funcs[name]
			if !ok {
				fn = &profile.Function{ID: uint64(len(funcs) + 1), Name: name}
				prof.Function = append(prof.Function, fn)
				funcs[name] = fn
			}
			loc := &profile.Location{
				ID:   uint64(len(prof.Location) + 1),
				Line: []profile.Line{{Function: fn}},
			}
			prof.Location = append(prof.Location, loc)
			locs = append(locs, loc)
		}
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: locs,
			Value:    []int64{s.count, s.nanos},
		})
	}
	require.NoError(t, prof.CheckValid())
	return prof
}

func TestSampleFrames_InlinedLines(t *testing.T) {
	inner := &profile.Function{ID: 1, Name: "inner"}
	outer := &profile.Function{ID: 2, Name: "outer"}
	caller := &profile.Function{ID: 3, Name: "caller"}

	s := &profile.Sample{
		Location: []*profile.Location{
			{ID: 1, Line: []profile.Line{{Function: inner}, {Function: outer}}},
			{ID: 2, Line: []profile.Line{{Function: caller}}},
			{ID: 3},
		},
	}
	assert.Equal(t, []string{"caller", "outer", "inner"}, sampleFrames(s))
}

func TestProfileToData(t *testing.T) {
	prof := buildTestProfile(t, "samples", "cpu", []testSample{
		{leafFirst: []string{"work", "run", "main.main"}, count: 3, nanos: 30_000_000},
		{leafFirst: []string{"run", "main.main"}, count: 1, nanos: 10_000_000},
		{leafFirst: []string{"idle"}, count: 0, nanos: 0},
	})

	data := profileToData(prof, sampleTypeIndex(prof, "samples", 0), sampleTypeIndex(prof, "cpu", 1))

	assert.Equal(t, profiledata.Data{
		"main()":             {Count: 4, WallTime: 40000},
		"main()==>main.main": {Count: 4, WallTime: 40000},
		"main.main==>run":    {Count: 4, WallTime: 40000},
		"run==>work":         {Count: 3, WallTime: 30000},
	}, data)
}

func TestDeltaToData(t *testing.T) {
	before := buildTestProfile(t, "contentions", "delay", []testSample{
		{leafFirst: []string{"sync.(*Mutex).Lock", "handler"}, count: 5, nanos: 5_000},
		{leafFirst: []string{"chanrecv", "worker"}, count: 2, nanos: 8_000},
	})
	after := buildTestProfile(t, "contentions", "delay", []testSample{
		{leafFirst: []string{"sync.(*Mutex).Lock", "handler"}, count: 7, nanos: 9_000},
		{leafFirst: []string{"chanrecv", "worker"}, count: 2, nanos: 8_000},
		{leafFirst: []string{"select", "poller"}, count: 1, nanos: 3_000_000},
	})

	data := deltaToData(totalsOf(before, 0, 1), totalsOf(after, 0, 1))

	assert.Equal(t, profiledata.Data{
		"main()":                       {Count: 3, WallTime: 3004},
		"main()==>handler":             {Count: 2, WallTime: 4},
		"handler==>sync.(*Mutex).Lock": {Count: 2, WallTime: 4},
		"main()==>poller":              {Count: 1, WallTime: 3000},
		"poller==>select":              {Count: 1, WallTime: 3000},
	}, data)
}

func TestSampleTypeIndex(t *testing.T) {
	prof := buildTestProfile(t, "samples", "cpu", nil)
	assert.Equal(t, 1, sampleTypeIndex(prof, "cpu", 0))
	assert.Equal(t, 0, sampleTypeIndex(prof, "samples", 1))
	assert.Equal(t, 5, sampleTypeIndex(prof, "missing", 5))
}

func TestCPU_CapturesCallGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping cpu profile capture in short mode")
	}

	c := NewCPU()
	if !c.Available() {
		t.Skip("cpu profiler is held by another user in this process")
	}
	require.NoError(t, c.Begin())
	require.Error(t, c.Begin(), "second Begin must fail while running")
	assert.True(t, c.Available(), "running backend stays available")

	spinFor(300 * time.Millisecond)

	data, err := c.End()
	require.NoError(t, err)
	require.NoError(t, data.Validate())
	if len(data) == 0 {
		t.Skip("no cpu samples collected on this machine")
	}
	assert.Contains(t, data, profiledata.RootKey)

	_, err = c.End()
	require.Error(t, err, "End without Begin")
}

func TestBlock_CapturesContention(t *testing.T) {
	b := NewBlock(0)
	assert.True(t, b.Available())
	require.NoError(t, b.Begin())

	ch := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(ch)
	}()
	<-ch

	data, err := b.End()
	require.NoError(t, err)
	require.NoError(t, data.Validate())
	require.Contains(t, data, profiledata.RootKey)
	assert.Positive(t, data[profiledata.RootKey].Count)
	assert.Positive(t, data[profiledata.RootKey].WallTime)
}

func TestParsePprof(t *testing.T) {
	prof := buildTestProfile(t, "contentions", "delay", []testSample{
		{leafFirst: []string{"lock", "handler"}, count: 2, nanos: 6_000},
	})
	var buf bytes.Buffer
	require.NoError(t, prof.Write(&buf))

	data, err := ParsePprof(&buf)
	require.NoError(t, err)
	assert.Equal(t, profiledata.Data{
		"main()":           {Count: 2, WallTime: 6},
		"main()==>handler": {Count: 2, WallTime: 6},
		"handler==>lock":   {Count: 2, WallTime: 6},
	}, data)

	_, err = ParsePprof(strings.NewReader("not a profile"))
	require.Error(t, err)
}

func TestCreditSampledCPU(t *testing.T) {
	prof := buildTestProfile(t, "samples", "cpu", []testSample{
		{leafFirst: []string{"work", "main.main"}, count: 2, nanos: 20_000_000},
	})
	data := profileToData(prof, 0, 1)
	creditSampledCPU(data)

	assert.Equal(t, profiledata.Data{
		"main()":             {Count: 2, WallTime: 20000, CPUTime: 20000},
		"main()==>main.main": {Count: 2, WallTime: 20000, CPUTime: 20000},
		"main.main==>work":   {Count: 2, WallTime: 20000, CPUTime: 20000},
	}, data)
}
