package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/shroroh/teacherflow/internal/settings"
	"github.com/shroroh/teacherflow/pkg/flowgraph/cache"
	"github.com/shroroh/teacherflow/pkg/flowgraph/llm"
	"github.com/shroroh/teacherflow/pkg/flowgraph/observability"
)

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("--log-format must be text or json, got %q", format)
	}
}

// newGenerator wraps client with the prompt cache and the call journal.
// The returned func releases both.
func newGenerator(client llm.Client, s settings.Settings, metrics observability.MetricsRecorder, logger *slog.Logger) (llm.Generator, func(), error) {
	sqlite, err := cache.NewSQLiteStore(s.Cache.Path)
	if err != nil {
		return nil, nil, err
	}
	var store cache.Store = sqlite
	if s.Cache.MemoryEntries > 0 {
		if store, err = cache.NewLRUStore(sqlite, s.Cache.MemoryEntries); err != nil {
			_ = sqlite.Close()
			return nil, nil, err
		}
	}

	journal, err := llm.NewFileJournal(s.LogDir)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	gen := llm.NewGenerator(client,
		llm.WithCache(store),
		llm.WithJournal(journal),
		llm.WithGeneratorMetrics(metrics),
		llm.WithGeneratorLogger(logger),
	)
	closeAll := func() {
		if err := errors.Join(journal.Close(), store.Close()); err != nil {
			logger.Warn("closing llm resources", slog.String("error", err.Error()))
		}
	}
	return gen, closeAll, nil
}

// installTracing makes spans print to w. The returned func flushes them.
func installTracing(w io.Writer) (func(), error) {
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(w),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}

// runMetrics collects pipeline and cache metrics in memory for one
// invocation. A nil *runMetrics records nothing.
type runMetrics struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
	recorder observability.MetricsRecorder
}

func newRunMetrics() (*runMetrics, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder, err := observability.NewMetricsRecorderFor(provider.Meter(observability.MeterName))
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("metrics: %w", err)
	}
	return &runMetrics{reader: reader, provider: provider, recorder: recorder}, nil
}

// Recorder returns the recorder stages and the generator report to.
func (m *runMetrics) Recorder() observability.MetricsRecorder {
	if m == nil {
		return observability.NoopMetrics{}
	}
	return m.recorder
}

// Report writes one line per metric and attribute set to w.
func (m *runMetrics) Report(ctx context.Context, w io.Writer) error {
	if m == nil {
		return nil
	}
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}

	type row struct{ name, attrs, value string }
	var rows []row
	enc := attribute.DefaultEncoder()
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					rows = append(rows, row{md.Name, dp.Attributes.Encoded(enc), fmt.Sprint(dp.Value)})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					rows = append(rows, row{md.Name, dp.Attributes.Encoded(enc),
						fmt.Sprintf("count=%d sum=%g", dp.Count, dp.Sum)})
				}
			}
		}
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := strings.Compare(a.name, b.name); c != 0 {
			return c
		}
		return strings.Compare(a.attrs, b.attrs)
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tATTRIBUTES\tVALUE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.name, r.attrs, r.value)
	}
	return tw.Flush()
}

// Close releases the meter provider.
func (m *runMetrics) Close() {
	if m == nil {
		return
	}
	_ = m.provider.Shutdown(context.Background())
}
