// Package metrics is an in-process operation counter for the data layer.
// It tracks call and failure counts plus cumulative latency per operation,
// enough for the periodic summary log and the debug dump.
package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type opStats struct {
	Calls    int64
	Failures int64
	Total    time.Duration
	Max      time.Duration
}

// Collector aggregates per-operation stats. The zero value is not usable;
// call New.
type Collector struct {
	mu  sync.Mutex
	ops map[string]*opStats
}

func New() *Collector {
	return &Collector{ops: map[string]*opStats{}}
}

// Observe records one call of op. Failed calls count toward both Calls and
// Failures.
func (c *Collector) Observe(op string, d time.Duration, err error) {
	if c == nil || op == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.ops[op]
	if st == nil {
		st = &opStats{}
		c.ops[op] = st
	}
	st.Calls++
	if err != nil {
		st.Failures++
	}
	st.Total += d
	if d > st.Max {
		st.Max = d
	}
}

// OpSnapshot is a point-in-time view of one operation's stats.
type OpSnapshot struct {
	Op       string        `json:"op"`
	Calls    int64         `json:"calls"`
	Failures int64         `json:"failures"`
	AvgMs    float64       `json:"avg_ms"`
	Max      time.Duration `json:"-"`
	MaxMs    float64       `json:"max_ms"`
}

// Snapshot returns stats for every observed operation, sorted by name.
func (c *Collector) Snapshot() []OpSnapshot {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]OpSnapshot, 0, len(c.ops))
	for op, st := range c.ops {
		snap := OpSnapshot{
			Op:       op,
			Calls:    st.Calls,
			Failures: st.Failures,
			Max:      st.Max,
			MaxMs:    float64(st.Max.Microseconds()) / 1000,
		}
		if st.Calls > 0 {
			snap.AvgMs = float64(st.Total.Microseconds()) / 1000 / float64(st.Calls)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// LogSummary writes one line per operation at debug level.
func (c *Collector) LogSummary(log *slog.Logger) {
	if c == nil || log == nil {
		return
	}
	for _, snap := range c.Snapshot() {
		log.Debug("op stats",
			"op", snap.Op,
			"calls", snap.Calls,
			"failures", snap.Failures,
			"avg_ms", snap.AvgMs,
			"max_ms", snap.MaxMs,
		)
	}
}
