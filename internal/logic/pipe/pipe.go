package pipe

import (
	"fmt"
	"runtime/debug"
	"time"

	"sol-ingest/internal/metrics"
	"sol-ingest/pkg/logger"
)

// outcome 单次 pipe 调用结果
type outcome uint8

const (
	outcomeSkipped outcome = iota
	outcomeProcessed
)

// observe 执行一次 pipe 调用：捕获 panic 转为 error，并记录耗时与结果。
// 耗时对成功、失败与 panic 都记录，跳过（解码失败或被过滤）的调用不计时。
func observe(name string, m *metrics.MetricsCollection, fn func() (outcome, error)) (err error) {
	start := time.Now()
	label := metrics.L("pipe", name)
	res := outcomeSkipped

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Pipe:%s] panic: %v\n%s", name, r, debug.Stack())
			err = fmt.Errorf("pipe %s panicked: %v", name, r)
			m.IncrementCounter(metrics.PipeFailures, 1, label)
		}
		if res == outcomeProcessed || err != nil {
			m.RecordHistogram(metrics.PipeDurationMillis, float64(time.Since(start).Microseconds())/1000, label)
		}
	}()

	res, err = fn()
	if err != nil {
		m.IncrementCounter(metrics.PipeFailures, 1, label)
		return fmt.Errorf("pipe %s: %w", name, err)
	}
	if res == outcomeSkipped {
		m.IncrementCounter(metrics.PipeSkipped, 1, label)
		return nil
	}

	m.IncrementCounter(metrics.PipeRuns, 1, label)
	return nil
}
