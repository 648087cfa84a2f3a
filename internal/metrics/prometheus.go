package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics Prometheus 后端。
// 指标按名称在首次写入时创建并注册，label 维度以首次写入为准。
type PrometheusMetrics struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry 返回内部 registry，供测试或额外 collector 注册
func (p *PrometheusMetrics) Registry() *prometheus.Registry {
	return p.registry
}

// Handler /metrics HTTP handler
func (p *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *PrometheusMetrics) Initialize(_ context.Context) error {
	return p.registry.Register(collectors.NewGoCollector())
}

// Flush Prometheus 为拉模式，无需主动推送
func (p *PrometheusMetrics) Flush(_ context.Context) error { return nil }

func (p *PrometheusMetrics) Shutdown(_ context.Context) error { return nil }

func (p *PrometheusMetrics) IncrementCounter(name string, value uint64, labels ...Label) error {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
		}, labelKeys(labels))
		if err := p.registry.Register(vec); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("register counter %s: %w", name, err)
		}
		p.counters[name] = vec
	}
	p.mu.Unlock()

	c, err := vec.GetMetricWith(toPromLabels(labels))
	if err != nil {
		return err
	}
	c.Add(float64(value))
	return nil
}

func (p *PrometheusMetrics) UpdateGauge(name string, value float64, labels ...Label) error {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
		}, labelKeys(labels))
		if err := p.registry.Register(vec); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("register gauge %s: %w", name, err)
		}
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	g, err := vec.GetMetricWith(toPromLabels(labels))
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

func (p *PrometheusMetrics) RecordHistogram(name string, value float64, labels ...Label) error {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
			Buckets:   Buckets(name),
		}, labelKeys(labels))
		if err := p.registry.Register(vec); err != nil {
			p.mu.Unlock()
			return fmt.Errorf("register histogram %s: %w", name, err)
		}
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	h, err := vec.GetMetricWith(toPromLabels(labels))
	if err != nil {
		return err
	}
	h.Observe(value)
	return nil
}

func toPromLabels(labels []Label) prometheus.Labels {
	out := make(prometheus.Labels, len(labels))
	for _, l := range labels {
		out[l.Key] = l.Value
	}
	return out
}
