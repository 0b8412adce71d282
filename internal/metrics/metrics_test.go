package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreConcurrencySafe(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncrementCounter("orders.created")
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), m.GetCounters()["orders.created"])
}

func TestRecordTimer(t *testing.T) {
	m := NewMetrics()
	m.RecordTimer("db.select", 10*time.Millisecond)
	m.RecordTimer("db.select", 30*time.Millisecond)

	timer := m.GetTimers()["db.select"]
	assert.Equal(t, int64(2), timer.Count)
	assert.Equal(t, int64(10), timer.MinTimeMs)
	assert.Equal(t, int64(30), timer.MaxTimeMs)
	assert.InDelta(t, 20.0, timer.AverageTimeMs, 0.001)
}

func TestRecordOperationErrorRate(t *testing.T) {
	m := NewMetrics()
	start := time.Now()
	m.RecordOperation("ingest_qr", start, nil)
	m.RecordOperation("ingest_qr", start, errors.New("boom"))

	rate := m.GetErrorRates()["ingest_qr"]
	assert.Equal(t, int64(2), rate.Total)
	assert.Equal(t, int64(1), rate.Errors)
	assert.InDelta(t, 50.0, rate.ErrorRate, 0.001)
}

func TestHealthChecks(t *testing.T) {
	m := NewMetrics()
	m.SetHealth("redis", true)
	m.SetHealth("elasticsearch", false)

	checks := m.GetHealthChecks()
	assert.True(t, checks["redis"])
	assert.False(t, checks["elasticsearch"])
}

func TestPrometheusMirror(t *testing.T) {
	m := NewMetrics()
	p := NewPrometheus()
	m.AttachPrometheus(p)

	m.RecordRequiredDelta("order", 5)
	m.RecordRequiredDelta("order", -2)

	require.Equal(t, 2.0, testutil.ToFloat64(p.cascades.WithLabelValues("order")))
	require.Equal(t, 5.0, testutil.ToFloat64(p.cascadeDelta.WithLabelValues("order", "up")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.cascadeDelta.WithLabelValues("order", "down")))
}

func TestGetMetricsCollectorIsSingleton(t *testing.T) {
	assert.Same(t, GetMetricsCollector(), GetMetricsCollector())
}
