package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a meter provider backed by a manual reader.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	})
	return reader, provider
}

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumValue(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "Expected Sum type")
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewMetricsRecorder(t *testing.T) {
	_, provider := setupMetricsTest(t)
	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	defer otel.SetMeterProvider(original)

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordStageExecution(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := NewMetricsRecorderFor(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordStageExecution(ctx, "assess_level", 1, 50*time.Millisecond, nil)
	m.RecordStageExecution(ctx, "prioritize", 3, 20*time.Millisecond, errors.New("exhausted"))

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(2), sumValue(t, findMetric(rm, "teacherflow.stage.executions")))
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "teacherflow.stage.errors")))

	latency := findMetric(rm, "teacherflow.stage.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 2)
}

func TestRecordAttempt(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := NewMetricsRecorderFor(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAttempt(ctx, "plan_topics", 1, errors.New("malformed"))
	m.RecordAttempt(ctx, "plan_topics", 2, nil)

	rm := collectMetrics(t, reader)
	attempts := findMetric(rm, "teacherflow.stage.attempts")
	assert.Equal(t, int64(2), sumValue(t, attempts))

	sum := attempts.Data.(metricdata.Sum[int64])
	var sawSecond bool
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("attempt")); ok && v.AsInt64() == 2 {
			sawSecond = true
		}
	}
	assert.True(t, sawSecond, "attempt attribute should be recorded")
}

func TestRecordRunAndCache(t *testing.T) {
	reader, provider := setupMetricsTest(t)
	m, err := NewMetricsRecorderFor(provider.Meter(MeterName))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordRun(ctx, true, time.Second)
	m.RecordCacheLookup(ctx, true)
	m.RecordCacheLookup(ctx, false)
	m.RecordCacheLookup(ctx, false)

	rm := collectMetrics(t, reader)
	assert.Equal(t, int64(1), sumValue(t, findMetric(rm, "teacherflow.run.count")))

	cache := findMetric(rm, "teacherflow.llm.cache")
	require.NotNil(t, cache)
	counts := map[string]int64{}
	for _, dp := range cache.Data.(metricdata.Sum[int64]).DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("outcome"))
		counts[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"hit": 1, "miss": 2}, counts)
}
