// Package telemetry aggregates execution statistics through the trace hooks.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/satishbabariya/dbkit/runtime/trace"
)

// Stat is the aggregate of one trace key.
type Stat struct {
	Key       string
	Count     int64
	Errors    int64
	Cancelled int64
	Total     time.Duration
	Slowest   time.Duration
	// SlowestStatement is the text of the slowest execution.
	SlowestStatement string
}

// Average returns the mean execution time.
func (s Stat) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

// Report is a point in time copy of the collector, sorted by key.
type Report struct {
	Taken time.Time
	Stats []Stat
}

// Option configures a Collector.
type Option func(*Collector)

// WithSlowThreshold logs executions that take longer than d. Zero disables it.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *Collector) { c.slow = d }
}

// WithLogger sets the logger for slow executions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// Collector implements trace.Trace.
type Collector struct {
	mu      sync.Mutex
	stats   map[string]*Stat
	enabled bool
	slow    time.Duration
	logger  *slog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ trace.Trace = (*Collector)(nil)

// NewCollector returns a collector. Setting DBKIT_TELEMETRY_DISABLED to
// "1" or "true" turns it into a no-op.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		stats:   make(map[string]*Stat),
		enabled: !isTelemetryDisabled(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether the collector records anything.
func (c *Collector) Enabled() bool { return c.enabled }

// BeforeExecution registers the key so it shows up in snapshots.
func (c *Collector) BeforeExecution(_ context.Context, log *trace.CancellableLog) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.stat(log.Key)
	c.mu.Unlock()
}

// AfterExecution records one completed execution.
func (c *Collector) AfterExecution(ctx context.Context, log *trace.ResultLog) {
	if !c.enabled {
		return
	}

	c.mu.Lock()
	s := c.stat(log.Key)
	s.Count++
	s.Total += log.ExecutionTime
	if log.Err != nil {
		s.Errors++
	}
	if log.ExecutionTime > s.Slowest {
		s.Slowest = log.ExecutionTime
		s.SlowestStatement = log.Statement
	}
	c.mu.Unlock()

	if c.slow > 0 && log.ExecutionTime > c.slow {
		c.logger.WarnContext(ctx, "Slow statement",
			"key", log.Key, "duration", log.ExecutionTime, "sql", log.Statement, "session", log.SessionID)
	}
}

// Observe wraps t and counts the executions it cancels. A cancelled
// execution never reaches AfterExecution.
func (c *Collector) Observe(t trace.Trace) trace.Trace {
	return trace.Funcs{
		Before: func(ctx context.Context, log *trace.CancellableLog) {
			t.BeforeExecution(ctx, log)
			if !c.enabled || !log.IsCancelled() {
				return
			}
			c.mu.Lock()
			c.stat(log.Key).Cancelled++
			c.mu.Unlock()
		},
		After: t.AfterExecution,
	}
}

// stat returns the entry for key. Callers hold c.mu.
func (c *Collector) stat(key string) *Stat {
	s, ok := c.stats[key]
	if !ok {
		s = &Stat{Key: key}
		c.stats[key] = s
	}
	return s
}

// Snapshot returns the statistics collected so far.
func (c *Collector) Snapshot() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{Taken: time.Now(), Stats: make([]Stat, 0, len(c.stats))}
	for _, s := range c.stats {
		r.Stats = append(r.Stats, *s)
	}
	sort.Slice(r.Stats, func(i, j int) bool { return r.Stats[i].Key < r.Stats[j].Key })
	return r
}

// Reset clears all statistics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[string]*Stat)
}

// Start sends a snapshot to sink every interval until Shutdown.
func (c *Collector) Start(interval time.Duration, sink func(Report)) {
	c.mu.Lock()
	if c.stopChan != nil || !c.enabled {
		c.mu.Unlock()
		return
	}
	c.stopChan = make(chan struct{})
	stop := c.stopChan
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sink(c.Snapshot())
			case <-stop:
				// Final report before stopping
				sink(c.Snapshot())
				return
			}
		}
	}()
}

// Shutdown stops the background reporter started by Start.
func (c *Collector) Shutdown() {
	c.mu.Lock()
	stop := c.stopChan
	c.stopChan = nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	c.wg.Wait()
}

// isTelemetryDisabled checks the DBKIT_TELEMETRY_DISABLED environment variable
func isTelemetryDisabled() bool {
	v := os.Getenv("DBKIT_TELEMETRY_DISABLED")
	return v == "1" || v == "true"
}
