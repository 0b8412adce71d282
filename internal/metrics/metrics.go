package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TimerMetric summarises recorded durations
type TimerMetric struct {
	Count         int64   `json:"count"`
	TotalTimeMs   int64   `json:"total_time_ms"`
	AverageTimeMs float64 `json:"average_time_ms"`
	MinTimeMs     int64   `json:"min_time_ms"`
	MaxTimeMs     int64   `json:"max_time_ms"`
}

// ErrorRateMetric captures error rates
type ErrorRateMetric struct {
	Total     int64   `json:"total"`
	Errors    int64   `json:"errors"`
	ErrorRate float64 `json:"error_rate"`
}

type timer struct {
	count   int64
	totalMs int64
	minMs   int64
	maxMs   int64
}

type errorRate struct {
	total  int64
	errors int64
}

// Metrics is an in-process collector exposed as JSON on /metrics.
// Every value is updated with atomics; the mutex only guards map growth.
type Metrics struct {
	mu         sync.RWMutex
	counters   map[string]*int64
	gauges     map[string]*int64
	timers     map[string]*timer
	errorRates map[string]*errorRate
	health     map[string]*int64
	startTime  time.Time
	prom       *Prometheus
}

var (
	collector     *Metrics
	collectorOnce sync.Once
)

// GetMetricsCollector returns the process wide collector
func GetMetricsCollector() *Metrics {
	collectorOnce.Do(func() {
		collector = NewMetrics()
	})
	return collector
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*int64),
		timers:     make(map[string]*timer),
		errorRates: make(map[string]*errorRate),
		health:     make(map[string]*int64),
		startTime:  time.Now(),
	}
}

// AttachPrometheus mirrors selected measurements into Prometheus collectors
func (m *Metrics) AttachPrometheus(p *Prometheus) {
	m.mu.Lock()
	m.prom = p
	m.mu.Unlock()
}

func (m *Metrics) prometheus() *Prometheus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prom
}

func (m *Metrics) int64Slot(set map[string]*int64, name string) *int64 {
	m.mu.RLock()
	slot, ok := set[name]
	m.mu.RUnlock()
	if ok {
		return slot
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok = set[name]; !ok {
		slot = new(int64)
		set[name] = slot
	}
	return slot
}

// IncrementCounter increments a counter by 1
func (m *Metrics) IncrementCounter(name string) {
	m.IncrementCounterBy(name, 1)
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	atomic.AddInt64(m.int64Slot(m.counters, name), value)
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	atomic.StoreInt64(m.int64Slot(m.gauges, name), value)
}

// SetHealth marks a dependency healthy or not
func (m *Metrics) SetHealth(component string, healthy bool) {
	var v int64
	if healthy {
		v = 1
	}
	atomic.StoreInt64(m.int64Slot(m.health, component), v)
}

// RecordTimer records a duration under name
func (m *Metrics) RecordTimer(name string, d time.Duration) {
	m.mu.RLock()
	t, ok := m.timers[name]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if t, ok = m.timers[name]; !ok {
			t = &timer{minMs: math.MaxInt64}
			m.timers[name] = t
		}
		m.mu.Unlock()
	}

	ms := d.Milliseconds()
	atomic.AddInt64(&t.count, 1)
	atomic.AddInt64(&t.totalMs, ms)
	for {
		cur := atomic.LoadInt64(&t.minMs)
		if ms >= cur || atomic.CompareAndSwapInt64(&t.minMs, cur, ms) {
			break
		}
	}
	for {
		cur := atomic.LoadInt64(&t.maxMs)
		if ms <= cur || atomic.CompareAndSwapInt64(&t.maxMs, cur, ms) {
			break
		}
	}
}

// RecordOperation records the outcome and latency of a service operation
func (m *Metrics) RecordOperation(name string, start time.Time, err error) {
	m.RecordTimer("op."+name, time.Since(start))

	m.mu.RLock()
	er, ok := m.errorRates[name]
	m.mu.RUnlock()
	if !ok {
		m.mu.Lock()
		if er, ok = m.errorRates[name]; !ok {
			er = &errorRate{}
			m.errorRates[name] = er
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(&er.total, 1)
	if err != nil {
		atomic.AddInt64(&er.errors, 1)
	}

	if p := m.prometheus(); p != nil {
		p.ObserveOperation(name, time.Since(start), err)
	}
}

// RecordDatabaseQuery records a GORM statement
func (m *Metrics) RecordDatabaseQuery(kind string, success bool, d time.Duration) {
	m.IncrementCounter("db." + kind)
	if !success {
		m.IncrementCounter("db." + kind + ".errors")
	}
	m.RecordTimer("db."+kind, d)

	if p := m.prometheus(); p != nil {
		p.ObserveQuery(kind, d)
	}
}

// RecordRequiredDelta records a product aggregate adjustment made by a cascade
func (m *Metrics) RecordRequiredDelta(cascade string, delta int64) {
	m.IncrementCounter("cascade." + cascade)
	if p := m.prometheus(); p != nil {
		p.CascadeApplied(cascade, delta)
	}
}

// RecordHTTPRequest records a served API request
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.IncrementCounter("http.requests")
	if status >= 500 {
		m.IncrementCounter("http.errors")
	}
	m.RecordTimer("http."+method+" "+route, d)

	if p := m.prometheus(); p != nil {
		p.ObserveRequest(method, route, status, d)
	}
}

func snapshot(m *Metrics, set map[string]*int64) map[string]int64 {
	out := make(map[string]int64, len(set))
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, v := range set {
		out[name] = atomic.LoadInt64(v)
	}
	return out
}

// GetCounters returns all counters
func (m *Metrics) GetCounters() map[string]int64 {
	return snapshot(m, m.counters)
}

// GetGauges returns all gauges
func (m *Metrics) GetGauges() map[string]int64 {
	return snapshot(m, m.gauges)
}

// GetHealthChecks returns all health checks
func (m *Metrics) GetHealthChecks() map[string]bool {
	out := make(map[string]bool)
	for name, v := range snapshot(m, m.health) {
		out[name] = v > 0
	}
	return out
}

// GetTimers returns all timers
func (m *Metrics) GetTimers() map[string]TimerMetric {
	out := make(map[string]TimerMetric)
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, t := range m.timers {
		count := atomic.LoadInt64(&t.count)
		total := atomic.LoadInt64(&t.totalMs)
		tm := TimerMetric{
			Count:       count,
			TotalTimeMs: total,
			MinTimeMs:   atomic.LoadInt64(&t.minMs),
			MaxTimeMs:   atomic.LoadInt64(&t.maxMs),
		}
		if count > 0 {
			tm.AverageTimeMs = float64(total) / float64(count)
		}
		out[name] = tm
	}
	return out
}

// GetErrorRates returns all error rates
func (m *Metrics) GetErrorRates() map[string]ErrorRateMetric {
	out := make(map[string]ErrorRateMetric)
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, er := range m.errorRates {
		total := atomic.LoadInt64(&er.total)
		errs := atomic.LoadInt64(&er.errors)
		metric := ErrorRateMetric{Total: total, Errors: errs}
		if total > 0 {
			metric.ErrorRate = float64(errs) / float64(total) * 100.0
		}
		out[name] = metric
	}
	return out
}

// GetAllMetrics returns all metrics in a structured format
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"counters":       m.GetCounters(),
		"gauges":         m.GetGauges(),
		"timers":         m.GetTimers(),
		"error_rates":    m.GetErrorRates(),
		"health_checks":  m.GetHealthChecks(),
	}
}
