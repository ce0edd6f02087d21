package backend

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/pprof/profile"

	"github.com/coral-mesh/liveprof/pkg/profiledata"
)

// sampleFrames returns the function names of a pprof sample, root first.
// Inlined functions are expanded; locations without symbols are skipped.
func sampleFrames(s *profile.Sample) []string {
	// Locations are leaf first, and within a location the innermost inlined
	// line comes first.
	frames := make([]string, 0, len(s.Location))
	for _, loc := range s.Location {
		for _, line := range loc.Line {
			if line.Function != nil && line.Function.Name != "" {
				frames = append(frames, line.Function.Name)
			}
		}
	}
	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

// sampleTypeIndex returns the index of the sample type with the given type
// name, or fallback when absent.
func sampleTypeIndex(p *profile.Profile, typ string, fallback int) int {
	for i, st := range p.SampleType {
		if st.Type == typ {
			return i
		}
	}
	return fallback
}

func sampleValue(s *profile.Sample, idx int) int64 {
	if idx < 0 || idx >= len(s.Value) {
		return 0
	}
	return s.Value[idx]
}

// profileToData accumulates every sample of p under the synthetic root: the
// sample's count value becomes the call count and its nanosecond value, in
// microseconds, the wt field. What that time measures depends on the profile:
// CPU time for CPU profiles, blocked time for block profiles.
func profileToData(p *profile.Profile, countIdx, nanosIdx int) profiledata.Data {
	data := make(profiledata.Data)
	for _, s := range p.Sample {
		count := sampleValue(s, countIdx)
		if count <= 0 {
			continue
		}
		frames := append([]string{profiledata.RootKey}, sampleFrames(s)...)
		data.AddStack(frames, count, sampleValue(s, nanosIdx)/1000)
	}
	return data
}

// ParsePprof reads a pprof profile, gzipped or not, and converts it to call
// graph data. The first sample type is the call count; the first type measured
// in nanoseconds, if any, is the wall time.
func ParsePprof(r io.Reader) (profiledata.Data, error) {
	prof, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pprof profile: %w", err)
	}

	nanosIdx := -1
	for i, st := range prof.SampleType {
		if st.Unit == "nanoseconds" {
			nanosIdx = i
			break
		}
	}
	return profileToData(prof, 0, nanosIdx), nil
}

// stackTotals indexes the count and nanosecond values of p by stack.
type stackTotals map[string]stackTotal

type stackTotal struct {
	frames []string
	count  int64
	nanos  int64
}

func totalsOf(p *profile.Profile, countIdx, nanosIdx int) stackTotals {
	totals := make(stackTotals)
	for _, s := range p.Sample {
		frames := sampleFrames(s)
		key := strings.Join(frames, "\x00")
		t := totals[key]
		t.frames = frames
		t.count += sampleValue(s, countIdx)
		t.nanos += sampleValue(s, nanosIdx)
		totals[key] = t
	}
	return totals
}

// deltaToData accumulates the growth from before to after. Stacks whose count
// did not grow are skipped.
func deltaToData(before, after stackTotals) profiledata.Data {
	data := make(profiledata.Data)
	for key, a := range after {
		b := before[key]
		count := a.count - b.count
		if count <= 0 {
			continue
		}
		nanos := a.nanos - b.nanos
		if nanos < 0 {
			nanos = 0
		}
		frames := append([]string{profiledata.RootKey}, a.frames...)
		data.AddStack(frames, count, nanos/1000)
	}
	return data
}
