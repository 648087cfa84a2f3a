package metrics

import (
	"context"
	"errors"
	"strings"

	"sol-ingest/pkg/logger"
)

// Label 指标维度
type Label struct {
	Key   string
	Value string
}

// L 构造 Label
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// Metrics 指标后端：计数器单调递增；仪表为瞬时值；直方图按固定桶统计分布
type Metrics interface {
	Initialize(ctx context.Context) error
	Flush(ctx context.Context) error
	Shutdown(ctx context.Context) error
	IncrementCounter(name string, value uint64, labels ...Label) error
	UpdateGauge(name string, value float64, labels ...Label) error
	RecordHistogram(name string, value float64, labels ...Label) error
}

// MetricsCollection 指标句柄，pipeline 构建时创建一次，由所有 datasource 与 pipe 共享。
// 写入时扇出到全部后端，单个后端出错只记录日志。
type MetricsCollection struct {
	backends []Metrics
}

func NewMetricsCollection(backends ...Metrics) *MetricsCollection {
	return &MetricsCollection{backends: backends}
}

func (c *MetricsCollection) Backends() []Metrics {
	return c.backends
}

func (c *MetricsCollection) Initialize(ctx context.Context) error {
	var errs []error
	for _, b := range c.backends {
		errs = append(errs, b.Initialize(ctx))
	}
	return errors.Join(errs...)
}

func (c *MetricsCollection) Flush(ctx context.Context) error {
	var errs []error
	for _, b := range c.backends {
		errs = append(errs, b.Flush(ctx))
	}
	return errors.Join(errs...)
}

func (c *MetricsCollection) Shutdown(ctx context.Context) error {
	var errs []error
	for _, b := range c.backends {
		errs = append(errs, b.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

func (c *MetricsCollection) IncrementCounter(name string, value uint64, labels ...Label) {
	for _, b := range c.backends {
		if err := b.IncrementCounter(name, value, labels...); err != nil {
			logger.Debugf("[Metrics] counter %s 写入失败: %v", name, err)
		}
	}
}

func (c *MetricsCollection) UpdateGauge(name string, value float64, labels ...Label) {
	for _, b := range c.backends {
		if err := b.UpdateGauge(name, value, labels...); err != nil {
			logger.Debugf("[Metrics] gauge %s 写入失败: %v", name, err)
		}
	}
}

func (c *MetricsCollection) RecordHistogram(name string, value float64, labels ...Label) {
	for _, b := range c.backends {
		if err := b.RecordHistogram(name, value, labels...); err != nil {
			logger.Debugf("[Metrics] histogram %s 写入失败: %v", name, err)
		}
	}
}

var (
	nanosecondBuckets = []float64{1e3, 1e4, 1e5, 1e6, 5e6, 1e7, 5e7, 1e8, 5e8, 1e9, 1e10}
	defaultBuckets    = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
)

// Buckets 按指标名后缀选择固定桶边界
func Buckets(name string) []float64 {
	if strings.HasSuffix(name, "_nanoseconds") {
		return nanosecondBuckets
	}
	return defaultBuckets
}

func labelKeys(labels []Label) []string {
	keys := make([]string, len(labels))
	for i, l := range labels {
		keys[i] = l.Key
	}
	return keys
}
