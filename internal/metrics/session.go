package metrics

import (
	"time"
)

// SessionMetrics holds the metrics of one input-method session.
type SessionMetrics struct {
	registry *Registry

	// Counters
	RequestsTotal   *Counter
	CommitsTotal    *Counter
	RoundtripsTotal *Counter
	ErrorsTotal     *Counter

	// Gauges
	Available *Gauge
	Serial    *Gauge

	// Histograms
	RoundtripLatency *Histogram
}

// NewSessionMetrics creates and registers the session metrics. A nil
// registry gets a fresh one.
func NewSessionMetrics(registry *Registry) *SessionMetrics {
	if registry == nil {
		registry = NewRegistry("imetype", "")
	}

	return &SessionMetrics{
		registry: registry,

		RequestsTotal: registry.RegisterCounter(
			"requests_total",
			"Input-method requests sent (set_action, set_string, commit)",
			nil,
		),
		CommitsTotal: registry.RegisterCounter(
			"commits_total",
			"Commits sent against a session serial",
			nil,
		),
		RoundtripsTotal: registry.RegisterCounter(
			"roundtrips_total",
			"Synchronizing round-trips completed",
			nil,
		),
		ErrorsTotal: registry.RegisterCounter(
			"errors_total",
			"Actions that failed",
			nil,
		),

		Available: registry.RegisterGauge(
			"session_available",
			"1 while the compositor accepts input from this session",
			nil,
		),
		Serial: registry.RegisterGauge(
			"session_serial",
			"Most recent serial announced by the compositor",
			nil,
		),

		RoundtripLatency: registry.RegisterHistogram(
			"roundtrip_seconds",
			"Latency of the round-trip closing each action",
			nil,
			LatencyBuckets,
		),
	}
}

// Registry returns the registry the metrics live in.
func (m *SessionMetrics) Registry() *Registry {
	return m.registry
}

// RecordAction counts one applied action of the given kind.
func (m *SessionMetrics) RecordAction(kind string) {
	m.registry.RegisterCounter("actions_total", "Edit actions applied", Labels{"kind": kind}).Inc()
}

// Actions returns how many actions of kind were applied.
func (m *SessionMetrics) Actions(kind string) uint64 {
	c := m.registry.GetCounter("actions_total", Labels{"kind": kind})
	if c == nil {
		return 0
	}
	return c.Value()
}

// RecordRequests counts n queued requests.
func (m *SessionMetrics) RecordRequests(n int) {
	m.RequestsTotal.Add(uint64(n))
}

// RecordCommit counts a commit. Commits are requests too.
func (m *SessionMetrics) RecordCommit() {
	m.CommitsTotal.Inc()
	m.RequestsTotal.Inc()
}

// RecordRoundtrip records a completed round-trip.
func (m *SessionMetrics) RecordRoundtrip(d time.Duration) {
	m.RoundtripsTotal.Inc()
	m.RoundtripLatency.ObserveDuration(d)
}

// RecordError records a failed action.
func (m *SessionMetrics) RecordError() {
	m.ErrorsTotal.Inc()
}

// SetAvailable sets the availability gauge.
func (m *SessionMetrics) SetAvailable(available bool) {
	if available {
		m.Available.Set(1)
	} else {
		m.Available.Set(0)
	}
}

// SetSerial sets the serial gauge.
func (m *SessionMetrics) SetSerial(serial uint32) {
	m.Serial.Set(int64(serial))
}

// Snapshot returns a snapshot of key metrics.
func (m *SessionMetrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"requests_total":        m.RequestsTotal.Value(),
		"commits_total":         m.CommitsTotal.Value(),
		"roundtrips_total":      m.RoundtripsTotal.Value(),
		"errors_total":          m.ErrorsTotal.Value(),
		"session_available":     m.Available.Value(),
		"session_serial":        m.Serial.Value(),
		"roundtrip_avg_seconds": m.RoundtripLatency.Mean(),
	}
}
