// Package stats provides the named counters, averages, and histograms that
// timing components report through.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// Counter is a monotonically increasing event count.
type Counter struct {
	name  string
	value uint64
}

// Name returns the counter's registered name.
func (c *Counter) Name() string { return c.name }

// Inc adds one when enabled is true.
func (c *Counter) Inc(enabled bool) {
	if enabled {
		c.value++
	}
}

// Add adds v when enabled is true.
func (c *Counter) Add(v uint64, enabled bool) {
	if enabled {
		c.value += v
	}
}

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.value }

// Average tracks the mean and maximum of sampled values.
type Average struct {
	name  string
	sum   float64
	count uint64
	max   float64
}

// Name returns the average's registered name.
func (a *Average) Name() string { return a.name }

// Sample records v when enabled is true.
func (a *Average) Sample(v float64, enabled bool) {
	if !enabled {
		return
	}

	a.sum += v
	a.count++
	a.max = math.Max(a.max, v)
}

// Mean returns the average of all samples, or 0 without samples.
func (a *Average) Mean() float64 {
	if a.count == 0 {
		return 0
	}

	return a.sum / float64(a.count)
}

// Count returns the number of samples.
func (a *Average) Count() uint64 { return a.count }

// Max returns the largest sample.
func (a *Average) Max() float64 { return a.max }

// Histogram counts samples per integer bucket.
type Histogram struct {
	name    string
	buckets map[int]uint64
}

// Name returns the histogram's registered name.
func (h *Histogram) Name() string { return h.name }

// Sample adds one to bucket v when enabled is true.
func (h *Histogram) Sample(v int, enabled bool) {
	if enabled {
		h.buckets[v]++
	}
}

// Bucket returns the count of bucket v.
func (h *Histogram) Bucket(v int) uint64 { return h.buckets[v] }

// Total returns the number of samples over all buckets.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.buckets {
		n += c
	}

	return n
}

// Registry owns every statistic of one simulation. Asking for an existing
// name returns the same object, so components that share a name share the
// statistic.
type Registry struct {
	counters   map[string]*Counter
	averages   map[string]*Average
	histograms map[string]*Histogram
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		averages:   make(map[string]*Average),
		histograms: make(map[string]*Histogram),
	}
}

// Counter returns the counter registered under name, creating it if needed.
func (r *Registry) Counter(name string) *Counter {
	c, ok := r.counters[name]
	if !ok {
		c = &Counter{name: name}
		r.counters[name] = c
	}

	return c
}

// Average returns the average registered under name, creating it if needed.
func (r *Registry) Average(name string) *Average {
	a, ok := r.averages[name]
	if !ok {
		a = &Average{name: name}
		r.averages[name] = a
	}

	return a
}

// Histogram returns the histogram registered under name, creating it if
// needed.
func (r *Registry) Histogram(name string) *Histogram {
	h, ok := r.histograms[name]
	if !ok {
		h = &Histogram{name: name, buckets: make(map[int]uint64)}
		r.histograms[name] = h
	}

	return h
}

// Lookup returns the value of a counter or the mean of an average.
func (r *Registry) Lookup(name string) (float64, bool) {
	if c, ok := r.counters[name]; ok {
		return float64(c.value), true
	}

	if a, ok := r.averages[name]; ok {
		return a.Mean(), true
	}

	return 0, false
}

// Snapshot flattens the registry into name/value pairs. Averages contribute
// their mean and sample count, and histograms contribute one entry per
// bucket.
func (r *Registry) Snapshot() map[string]float64 {
	out := make(map[string]float64, len(r.counters)+2*len(r.averages))

	for name, c := range r.counters {
		out[name] = float64(c.value)
	}

	for name, a := range r.averages {
		out[name] = a.Mean()
		out[name+":n"] = float64(a.count)
	}

	for name, h := range r.histograms {
		for b, n := range h.buckets {
			out[fmt.Sprintf("%s[%d]", name, b)] = float64(n)
		}
	}

	return out
}

// Report writes one "name: value" line per statistic, sorted by name.
// Counters and averages whose names start with any of the given prefixes
// are reported; with no prefixes everything is.
func (r *Registry) Report(w io.Writer, prefixes ...string) error {
	snap := r.Snapshot()

	names := make([]string, 0, len(snap))
	for name := range snap {
		if matchesAny(name, prefixes) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s: %s\n", name, formatValue(snap[name])); err != nil {
			return fmt.Errorf("writing stats: %w", err)
		}
	}

	return nil
}

// WriteJSON writes the snapshot as an indented JSON object.
func (r *Registry) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(r.Snapshot()); err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}

	return nil
}

func matchesAny(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}

	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}

	return fmt.Sprintf("%.3f", v)
}
