package profiling

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Timings accumulates named durations for tick-level insights.
type Timings struct {
	mu     sync.Mutex
	totals map[string]time.Duration
	counts map[string]int
	now    func() time.Time
}

// Entry is one named timing aggregate.
type Entry struct {
	Name  string
	Total time.Duration
	Count int
}

// Average returns the mean duration per recorded call.
func (e Entry) Average() time.Duration {
	if e.Count == 0 {
		return 0
	}
	return e.Total / time.Duration(e.Count)
}

func NewTimings() *Timings {
	return &Timings{
		totals: make(map[string]time.Duration),
		counts: make(map[string]int),
		now:    time.Now,
	}
}

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer timings.Track("world.generate")()
func (t *Timings) Track(name string) func() {
	start := t.now()
	return func() {
		t.Add(name, t.now().Sub(start))
	}
}

// Add records d under name.
func (t *Timings) Add(name string, d time.Duration) {
	t.mu.Lock()
	t.totals[name] += d
	t.counts[name]++
	t.mu.Unlock()
}

// Get returns the aggregate for name.
func (t *Timings) Get(name string) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Entry{Name: name, Total: t.totals[name], Count: t.counts[name]}
}

// Reset clears all totals.
func (t *Timings) Reset() {
	t.mu.Lock()
	clear(t.totals)
	clear(t.counts)
	t.mu.Unlock()
}

// Snapshot returns all aggregates sorted by descending total.
func (t *Timings) Snapshot() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.totals))
	for k, v := range t.totals {
		out = append(out, Entry{Name: k, Total: v, Count: t.counts[k]})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total == out[j].Total {
			return out[i].Name < out[j].Name
		}
		return out[i].Total > out[j].Total
	})
	return out
}

// TopN formats the n largest totals. n <= 0 yields an empty string.
// Example: "world.generate:4.2ms, world.apply:2.1ms"
func (t *Timings) TopN(n int) string {
	list := t.Snapshot()
	n = min(max(n, 0), len(list))
	parts := make([]string, 0, n)
	for _, e := range list[:n] {
		ms := float64(e.Total.Microseconds()) / 1000.0
		parts = append(parts, e.Name+":"+strconv.FormatFloat(ms, 'f', 1, 64)+"ms")
	}
	return strings.Join(parts, ", ")
}
