package metrics

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"sol-ingest/pkg/logger"
)

// HistogramSummary 一个 flush 周期内的直方图摘要
type HistogramSummary struct {
	Count uint64
	Sum   float64
	Min   float64
	Max   float64
}

func (h HistogramSummary) Avg() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// LogMetrics 内存聚合，Flush 时写日志。counter 累计；histogram 每次 flush 后清零
type LogMetrics struct {
	mu         sync.Mutex
	counters   map[string]uint64
	gauges     map[string]float64
	histograms map[string]HistogramSummary
}

func NewLogMetrics() *LogMetrics {
	return &LogMetrics{
		counters:   make(map[string]uint64),
		gauges:     make(map[string]float64),
		histograms: make(map[string]HistogramSummary),
	}
}

func (l *LogMetrics) Initialize(_ context.Context) error { return nil }

func (l *LogMetrics) Flush(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.counters) == 0 && len(l.gauges) == 0 && len(l.histograms) == 0 {
		return nil
	}

	var b strings.Builder
	for _, k := range sortedKeys(l.counters) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatUint(l.counters[k]))
		b.WriteByte(' ')
	}
	for _, k := range sortedKeys(l.gauges) {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(formatFloat(l.gauges[k]))
		b.WriteByte(' ')
	}
	logger.Infof("[Metrics] %s", strings.TrimSpace(b.String()))

	for _, k := range sortedKeys(l.histograms) {
		h := l.histograms[k]
		logger.Infof("[Metrics] %s count=%d avg=%.3f min=%.3f max=%.3f", k, h.Count, h.Avg(), h.Min, h.Max)
	}
	l.histograms = make(map[string]HistogramSummary)
	return nil
}

func (l *LogMetrics) Shutdown(ctx context.Context) error {
	return l.Flush(ctx)
}

func (l *LogMetrics) IncrementCounter(name string, value uint64, labels ...Label) error {
	l.mu.Lock()
	l.counters[seriesKey(name, labels)] += value
	l.mu.Unlock()
	return nil
}

func (l *LogMetrics) UpdateGauge(name string, value float64, labels ...Label) error {
	l.mu.Lock()
	l.gauges[seriesKey(name, labels)] = value
	l.mu.Unlock()
	return nil
}

func (l *LogMetrics) RecordHistogram(name string, value float64, labels ...Label) error {
	key := seriesKey(name, labels)

	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.histograms[key]
	if !ok {
		h = HistogramSummary{Min: math.Inf(1), Max: math.Inf(-1)}
	}
	h.Count++
	h.Sum += value
	h.Min = math.Min(h.Min, value)
	h.Max = math.Max(h.Max, value)
	l.histograms[key] = h
	return nil
}

// Counter 读取 counter 当前值，key 形如 name{k=v,...}
func (l *LogMetrics) Counter(name string, labels ...Label) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counters[seriesKey(name, labels)]
}

func (l *LogMetrics) Gauge(name string, labels ...Label) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gauges[seriesKey(name, labels)]
}

func (l *LogMetrics) Histogram(name string, labels ...Label) HistogramSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.histograms[seriesKey(name, labels)]
}

func seriesKey(name string, labels []Label) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, len(labels))
	for i, lb := range labels {
		parts[i] = lb.Key + "=" + lb.Value
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
