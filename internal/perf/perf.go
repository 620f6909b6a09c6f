// Package perf records operation timings shared by the scan workers and the
// presentation loop.
package perf

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultSlowThreshold marks a single sample as worth a warning.
const DefaultSlowThreshold = 500 * time.Millisecond

// Stats summarizes the recorded samples for one named operation.
type Stats struct {
	Average time.Duration
	Min     time.Duration
	Max     time.Duration
	Count   int
}

// Monitor keeps an ordered sample list per operation name. One mutex guards
// recording so concurrent measurement from multiple workers stays correct.
type Monitor struct {
	mu      sync.Mutex
	samples map[string][]time.Duration

	slowThreshold  time.Duration
	logger         *slog.Logger
	onPresentation func() bool // reports whether the caller runs on the presentation loop

	now func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithSlowThreshold overrides the warning threshold.
func WithSlowThreshold(d time.Duration) Option {
	return func(m *Monitor) { m.slowThreshold = d }
}

// WithLogger routes slow-sample warnings to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

// WithPresentationCheck installs the predicate used to annotate warnings
// with whether the sample ran on the presentation loop.
func WithPresentationCheck(fn func() bool) Option {
	return func(m *Monitor) { m.onPresentation = fn }
}

// NewMonitor creates a monitor with the default 500ms slow threshold.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		samples:       make(map[string][]time.Duration),
		slowThreshold: DefaultSlowThreshold,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token is one in-flight measurement. It is consumed by a single End call.
type Token struct {
	m     *Monitor
	op    string
	start time.Time
}

// Begin starts timing one execution of the named operation.
func (m *Monitor) Begin(op string) Token {
	return Token{m: m, op: op, start: m.now()}
}

// End records the elapsed duration for the token's operation and returns it.
func (t Token) End() time.Duration {
	if t.m == nil {
		return 0
	}
	elapsed := t.m.now().Sub(t.start)
	t.m.record(t.op, elapsed)
	return elapsed
}

func (m *Monitor) record(op string, elapsed time.Duration) {
	m.mu.Lock()
	m.samples[op] = append(m.samples[op], elapsed)
	m.mu.Unlock()

	if elapsed > m.slowThreshold {
		onLoop := false
		if m.onPresentation != nil {
			onLoop = m.onPresentation()
		}
		m.logger.Warn("slow operation",
			slog.String("operation", op),
			slog.Duration("elapsed", elapsed),
			slog.Duration("threshold", m.slowThreshold),
			slog.Bool("presentation_thread", onLoop),
		)
	}
}

// Stats returns the aggregate for op; ok is false when nothing was recorded.
func (m *Monitor) Stats(op string) (Stats, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	samples := m.samples[op]
	if len(samples) == 0 {
		return Stats{}, false
	}
	s := Stats{Min: samples[0], Max: samples[0], Count: len(samples)}
	var total time.Duration
	for _, d := range samples {
		total += d
		if d < s.Min {
			s.Min = d
		}
		if d > s.Max {
			s.Max = d
		}
	}
	s.Average = total / time.Duration(len(samples))
	return s, true
}

// Operations lists the operation names with at least one sample.
func (m *Monitor) Operations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make([]string, 0, len(m.samples))
	for op := range m.samples {
		ops = append(ops, op)
	}
	return ops
}

// Reset clears all recorded history.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = make(map[string][]time.Duration)
}
