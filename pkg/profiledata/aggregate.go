package profiledata

import "time"

// Sample is one observation of the active call chain, root frame first.
type Sample struct {
	CapturedAt time.Time
	Stack      []string
}

// Samples is a chronologically ordered sequence of Sample.
type Samples []Sample

// Aggregate converts interval stack samples into Data.
//
// Each sample is charged the time elapsed since the previous sample (or since
// sessionStart for the first one), truncated to microseconds. The charge is
// credited in full to the root frame and to every edge of the sample's stack;
// it is never divided among the edges. Samples with an empty stack contribute
// nothing but still advance the interval.
func Aggregate(samples Samples, sessionStart time.Time) Data {
	data := make(Data)
	prev := sessionStart
	for _, s := range samples {
		delta := s.CapturedAt.Sub(prev).Microseconds()
		if delta < 0 {
			delta = 0
		}
		data.AddStack(s.Stack, 1, delta)
		prev = s.CapturedAt
	}
	return data
}
