// Package stats implements trualias's counters: a fixed set of named
// buckets (connections, reads, writes, success, not_found, bad, stats),
// each exposed as a monotonic expvar counter plus a rolling min/max/avg
// over 1s/10s/60s windows.
//
// Every counter is a plain expvar.Int registered under a "trualias/"
// namespace, served at /debug/vars. expvar only exposes monotonic
// counters, so the rolling-window computation on top of it is a small
// ring buffer of timestamped samples, pruned lazily on read.
package stats

import (
	"expvar"
	"fmt"
	"sync"
	"time"
)

// Bucket names a statistics counter.
type Bucket string

// Fixed buckets.
const (
	Connections Bucket = "connections"
	Reads       Bucket = "reads"
	Writes      Bucket = "writes"
	Success     Bucket = "success"
	NotFound    Bucket = "not_found"
	Bad         Bucket = "bad"
	StatsCmd    Bucket = "stats"
)

// windows are the rolling periods tracked per bucket.
var windows = []time.Duration{1 * time.Second, 10 * time.Second, 60 * time.Second}

type sample struct {
	at    time.Time
	value int64
}

type counter struct {
	mu      sync.Mutex
	total   expvar.Int
	samples []sample // append-only ring, pruned lazily on read
}

var (
	mu       sync.Mutex
	counters = map[Bucket]*counter{}
	vars     = expvar.NewMap("trualias/counters")
)

func get(b Bucket) *counter {
	mu.Lock()
	defer mu.Unlock()
	c, ok := counters[b]
	if !ok {
		c = &counter{}
		counters[b] = c
		vars.Set(string(b), &c.total)
	}
	return c
}

// Inc increments bucket b by 1 and records a rolling-window sample.
func Inc(b Bucket) { Add(b, 1) }

// Add increments bucket b by n and records a rolling-window sample.
func Add(b Bucket, n int64) {
	c := get(b)
	c.total.Add(n)

	c.mu.Lock()
	c.samples = append(c.samples, sample{at: now(), value: n})
	c.mu.Unlock()
}

// now is a seam for deterministic tests.
var now = time.Now

// WindowStats holds the min/max/avg of a bucket's per-sample values over
// one rolling window.
type WindowStats struct {
	Count        int
	Min, Max     int64
	Avg          float64
	WindowSecond int
}

// Snapshot returns the current total and the 1s/10s/60s rolling windows
// for bucket b.
func Snapshot(b Bucket) (total int64, byWindow []WindowStats) {
	c := get(b)
	total = c.total.Value()

	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := now().Add(-windows[len(windows)-1])
	i := 0
	for i < len(c.samples) && c.samples[i].at.Before(cutoff) {
		i++
	}
	c.samples = c.samples[i:]

	for _, w := range windows {
		from := now().Add(-w)
		var ws WindowStats
		ws.WindowSecond = int(w / time.Second)
		first := true
		for _, s := range c.samples {
			if s.at.Before(from) {
				continue
			}
			ws.Count++
			if first || s.value < ws.Min {
				ws.Min = s.value
			}
			if first || s.value > ws.Max {
				ws.Max = s.value
			}
			ws.Avg += float64(s.value)
			first = false
		}
		if ws.Count > 0 {
			ws.Avg /= float64(ws.Count)
		}
		byWindow = append(byWindow, ws)
	}
	return total, byWindow
}

// Buckets lists every bucket that has been touched, for the "stats"/"jstats"
// administrative commands.
func Buckets() []Bucket {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Bucket, 0, len(counters))
	for b := range counters {
		out = append(out, b)
	}
	return out
}

// Report renders a human-readable snapshot of every bucket, for the
// tcp-table "stats" administrative command.
func Report() string {
	var out string
	for _, b := range Buckets() {
		total, windows := Snapshot(b)
		out += fmt.Sprintf("%s total=%d", b, total)
		for _, w := range windows {
			out += fmt.Sprintf(" %ds(min=%d,max=%d,avg=%.2f,n=%d)",
				w.WindowSecond, w.Min, w.Max, w.Avg, w.Count)
		}
		out += "\n"
	}
	return out
}
