package profiling

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Lightweight per-frame instrumentation for the engine's tick work.

var (
	mu          sync.Mutex
	frameTotals = make(map[string]time.Duration)
	frameCounts = make(map[string]int)
)

// Track returns a stop function that records the elapsed time under the
// given name. Usage: defer profiling.Track("streaming.Tick")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		frameTotals[name] += d
		frameCounts[name]++
		mu.Unlock()
	}
}

// Add records an externally measured duration under the given name.
func Add(name string, d time.Duration) {
	if d <= 0 {
		return
	}
	mu.Lock()
	frameTotals[name] += d
	frameCounts[name]++
	mu.Unlock()
}

// Count bumps a unitless counter (queue skips, dropped jobs).
func Count(name string) {
	mu.Lock()
	frameCounts[name]++
	mu.Unlock()
}

// ResetFrame clears the current totals. Call at the start of each frame.
func ResetFrame() {
	mu.Lock()
	for k := range frameTotals {
		delete(frameTotals, k)
	}
	for k := range frameCounts {
		delete(frameCounts, k)
	}
	mu.Unlock()
}

// Snapshot returns a copy of the current frame totals.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(frameTotals))
	for k, v := range frameTotals {
		out[k] = v
	}
	return out
}

// Total returns the sum of all tracked durations this frame.
func Total() time.Duration {
	mu.Lock()
	defer mu.Unlock()
	var sum time.Duration
	for _, v := range frameTotals {
		sum += v
	}
	return sum
}

// TopN formats the N largest totals of the current frame, e.g.
// "meshing.Apply:1.2ms, streaming.GenTick:0.4ms".
func TopN(n int) string {
	mu.Lock()
	defer mu.Unlock()

	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(frameTotals))
	for k, v := range frameTotals {
		list = append(list, pair{k, v})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].dur > list[j].dur })
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ms := float64(list[i].dur.Microseconds()) / 1000.0
		parts = append(parts, fmt.Sprintf("%s:%.1fms", list[i].name, ms))
	}
	return strings.Join(parts, ", ")
}
