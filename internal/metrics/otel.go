package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "sol-ingest"

type forceFlusher interface {
	ForceFlush(ctx context.Context) error
}

// OtelMetrics OpenTelemetry 后端，导出由 MeterProvider 的 reader 负责
type OtelMetrics struct {
	provider metric.MeterProvider
	meter    metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	gauges     map[string]metric.Float64Gauge
	histograms map[string]metric.Float64Histogram
}

func NewOtelMetrics(provider metric.MeterProvider) *OtelMetrics {
	return &OtelMetrics{
		provider:   provider,
		meter:      provider.Meter(meterName),
		counters:   make(map[string]metric.Int64Counter),
		gauges:     make(map[string]metric.Float64Gauge),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (o *OtelMetrics) Initialize(_ context.Context) error { return nil }

// Flush 对 SDK MeterProvider 执行 ForceFlush，其他实现忽略
func (o *OtelMetrics) Flush(ctx context.Context) error {
	if f, ok := o.provider.(forceFlusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

// Shutdown provider 的生命周期由 telemetry.Init 返回的 ShutdownFunc 管理
func (o *OtelMetrics) Shutdown(ctx context.Context) error {
	return o.Flush(ctx)
}

func (o *OtelMetrics) IncrementCounter(name string, value uint64, labels ...Label) error {
	o.mu.Lock()
	c, ok := o.counters[name]
	if !ok {
		var err error
		if c, err = o.meter.Int64Counter(name); err != nil {
			o.mu.Unlock()
			return err
		}
		o.counters[name] = c
	}
	o.mu.Unlock()

	c.Add(context.Background(), int64(value), metric.WithAttributes(toAttributes(labels)...))
	return nil
}

func (o *OtelMetrics) UpdateGauge(name string, value float64, labels ...Label) error {
	o.mu.Lock()
	g, ok := o.gauges[name]
	if !ok {
		var err error
		if g, err = o.meter.Float64Gauge(name); err != nil {
			o.mu.Unlock()
			return err
		}
		o.gauges[name] = g
	}
	o.mu.Unlock()

	g.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
	return nil
}

func (o *OtelMetrics) RecordHistogram(name string, value float64, labels ...Label) error {
	o.mu.Lock()
	h, ok := o.histograms[name]
	if !ok {
		var err error
		if h, err = o.meter.Float64Histogram(name, metric.WithExplicitBucketBoundaries(Buckets(name)...)); err != nil {
			o.mu.Unlock()
			return err
		}
		o.histograms[name] = h
	}
	o.mu.Unlock()

	h.Record(context.Background(), value, metric.WithAttributes(toAttributes(labels)...))
	return nil
}

func toAttributes(labels []Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, l := range labels {
		attrs[i] = attribute.String(l.Key, l.Value)
	}
	return attrs
}
