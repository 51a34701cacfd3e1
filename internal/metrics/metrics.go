// Package metrics tracks how many GraphQL queries of each kind a run issued
// and how long each step took.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// QueryCounter counts invocations per logical query name.
// Keys are created on first use and never removed.
type QueryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewQueryCounter returns an empty counter.
func NewQueryCounter() *QueryCounter {
	return &QueryCounter{counts: make(map[string]int)}
}

// Inc adds one to the count for name.
func (c *QueryCounter) Inc(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[name]++
}

// Count returns the count for name, zero if it was never incremented.
func (c *QueryCounter) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[name]
}

// Total returns the sum over all names.
func (c *QueryCounter) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Snapshot returns a copy of the current counts.
func (c *QueryCounter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Names returns the counted query names in sorted order.
func (c *QueryCounter) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.counts))
	for k := range c.counts {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PerfCounter calls fn and reports how long it took in seconds.
// An error from fn is returned unchanged along with the elapsed time.
func PerfCounter[T any](fn func() (T, error)) (T, float64, error) {
	start := time.Now()
	result, err := fn()
	return result, time.Since(start).Seconds(), err
}

// Timing is one named measurement.
type Timing struct {
	Name    string
	Seconds float64
}

// Timings collects step durations of a run.
type Timings struct {
	mu      sync.Mutex
	entries []Timing
}

// Record stores a measurement.
func (t *Timings) Record(name string, seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Timing{Name: name, Seconds: seconds})
}

// Entries returns the measurements in the order they were recorded.
func (t *Timings) Entries() []Timing {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Timing(nil), t.entries...)
}

// Summary aggregates the recorded durations.
type Summary struct {
	Count int
	Sum   float64
	Mean  float64
	Max   float64
}

// Summary returns aggregate figures over all measurements.
// An empty set yields a zero Summary.
func (t *Timings) Summary() Summary {
	entries := t.Entries()
	if len(entries) == 0 {
		return Summary{}
	}
	data := make(stats.Float64Data, 0, len(entries))
	for _, e := range entries {
		data = append(data, e.Seconds)
	}
	// Errors from stats only signal empty input, which is excluded above.
	sum, _ := data.Sum()
	mean, _ := data.Mean()
	longest, _ := data.Max()
	return Summary{Count: len(entries), Sum: sum, Mean: mean, Max: longest}
}
