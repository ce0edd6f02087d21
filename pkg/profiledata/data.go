// Package profiledata defines the common call-graph metric shape produced by
// every profiling backend, and the aggregation of interval stack samples into it.
//
// A Data value maps a metric key to a CallMetric. Keys are either a function
// name or a call edge written as "parent==>child":
//
//	main()              {ct: 1, wt: 5230}
//	main()==>handler    {ct: 3, wt: 4100}
//	handler==>db.Query  {ct: 9, wt: 3020}
//
// The JSON field names (ct, wt, cpu, mu) match the format stored by the
// persistence adapters.
package profiledata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// EdgeSeparator joins parent and child frame names in an edge key.
const EdgeSeparator = "==>"

// RootKey is the synthetic root frame used by full call-graph backends.
const RootKey = "main()"

// CallMetric holds the counters for a single function or call edge.
type CallMetric struct {
	Count    int64 `json:"ct"`
	WallTime int64 `json:"wt"`            // Microseconds.
	CPUTime  int64 `json:"cpu,omitempty"` // Microseconds.
	Memory   int64 `json:"mu,omitempty"`  // Bytes.
}

// Add returns the element-wise sum of m and o.
func (m CallMetric) Add(o CallMetric) CallMetric {
	return CallMetric{
		Count:    m.Count + o.Count,
		WallTime: m.WallTime + o.WallTime,
		CPUTime:  m.CPUTime + o.CPUTime,
		Memory:   m.Memory + o.Memory,
	}
}

// Data is the normalized profile: metric key -> counters.
type Data map[string]CallMetric

// ErrMalformed is returned by Validate for data that cannot be persisted.
var ErrMalformed = errors.New("malformed profile data")

// EdgeKey builds the key of the call edge parent -> child.
func EdgeKey(parent, child string) string {
	return parent + EdgeSeparator + child
}

// SplitKey splits an edge key into its parent and child. For a plain function
// key, parent is empty and ok is false.
func SplitKey(key string) (parent, child string, ok bool) {
	idx := strings.Index(key, EdgeSeparator)
	if idx < 0 {
		return "", key, false
	}
	return key[:idx], key[idx+len(EdgeSeparator):], true
}

// Credit adds count and wall time to the metric stored under key.
func (d Data) Credit(key string, count, wallMicros int64) {
	m := d[key]
	m.Count += count
	m.WallTime += wallMicros
	d[key] = m
}

// AddStack credits a root-first call chain: the root frame and every adjacent
// edge each receive the full count and wall time. Empty stacks are ignored.
func (d Data) AddStack(frames []string, count, wallMicros int64) {
	if len(frames) == 0 {
		return
	}
	d.Credit(frames[0], count, wallMicros)
	for i := 1; i < len(frames); i++ {
		d.Credit(EdgeKey(frames[i-1], frames[i]), count, wallMicros)
	}
}

// Merge adds every metric of o into d.
func (d Data) Merge(o Data) {
	for k, m := range o {
		d[k] = d[k].Add(m)
	}
}

// Clone returns a deep copy of d.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, m := range d {
		out[k] = m
	}
	return out
}

// Validate checks that every key is non-empty and every counter is
// non-negative.
func (d Data) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil map", ErrMalformed)
	}
	for k, m := range d {
		if k == "" {
			return fmt.Errorf("%w: empty metric key", ErrMalformed)
		}
		if m.Count < 0 || m.WallTime < 0 || m.CPUTime < 0 || m.Memory < 0 {
			return fmt.Errorf("%w: negative counter for %q", ErrMalformed, k)
		}
	}
	return nil
}

// Entry is a key/metric pair, used for ordered views of Data.
type Entry struct {
	Key string
	CallMetric
}

// Top returns up to n entries ordered by wall time, then count, then key.
// n <= 0 returns every entry.
func (d Data) Top(n int) []Entry {
	entries := make([]Entry, 0, len(d))
	for k, m := range d {
		entries = append(entries, Entry{Key: k, CallMetric: m})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WallTime != entries[j].WallTime {
			return entries[i].WallTime > entries[j].WallTime
		}
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
