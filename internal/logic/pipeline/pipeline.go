package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/metrics"
	"sol-ingest/pkg/logger"
)

// Pipeline 将多个 datasource 的更新汇入同一个有界队列，由单个 goroutine 顺序分发给各 pipe
type Pipeline struct {
	datasources          []registeredDatasource
	accountPipes         []pipe.AccountPipe
	accountDeletionPipes []pipe.AccountDeletionPipe
	instructionPipes     []pipe.InstructionPipe
	transactionPipes     []pipe.TransactionPipe
	blockDetailsPipes    []pipe.BlockDetailsPipe
	metrics              *metrics.MetricsCollection
	metricsFlushInterval time.Duration
	shutdownStrategy     ShutdownStrategy
	channelBufferSize    int
}

// Metrics 返回 pipeline 共享的指标句柄
func (p *Pipeline) Metrics() *metrics.MetricsCollection {
	return p.metrics
}

// Run 启动所有 datasource 并进入分发循环，阻塞直到：
//   - ctx 取消（外部停止信号），按 ShutdownStrategy 退出；
//   - 所有 datasource 都已结束且队列处理完毕。
//
// datasource 或 pipe 出错只记录日志，不会使 Run 返回错误。
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.metrics.Initialize(ctx); err != nil {
		logger.Warnf("[Pipeline] 初始化指标失败: %v", err)
	}
	defer p.shutdownMetrics()

	logger.Infof("[Pipeline] 启动, datasources=%d, buffer=%d, shutdown=%s",
		len(p.datasources), p.channelBufferSize, p.shutdownStrategy)

	// 停止生产信号，由所有 datasource 共享；与外部 ctx 分离，以便 ProcessPending 时继续处理队列
	produceCtx, stopProducing := context.WithCancel(context.Background())
	defer stopProducing()

	queue := make(chan datasource.Envelope, p.channelBufferSize)
	p.startDatasources(produceCtx, queue)

	ticker := time.NewTicker(p.metricsFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopProducing()
			if p.shutdownStrategy == ShutdownImmediate {
				logger.Infof("[Pipeline] 收到停止信号，立即退出，丢弃队列中 %d 条更新", len(queue))
				return nil
			}
			logger.Infof("[Pipeline] 收到停止信号，处理队列中剩余更新")
			// 已出队的更新仍需处理完成，处理器使用不会被取消的 ctx
			drainCtx := context.WithoutCancel(ctx)
			for env := range queue {
				p.dispatch(drainCtx, env)
			}
			logger.Infof("[Pipeline] 队列已清空，退出")
			return nil

		case env, ok := <-queue:
			if !ok {
				logger.Infof("[Pipeline] 所有 datasource 已结束，退出")
				return nil
			}
			// Immediate 模式下停止信号与队列同时就绪时不再分发
			if p.shutdownStrategy == ShutdownImmediate && ctx.Err() != nil {
				stopProducing()
				logger.Infof("[Pipeline] 收到停止信号，立即退出，丢弃队列中 %d 条更新", len(queue)+1)
				return nil
			}
			p.metrics.UpdateGauge(metrics.UpdatesQueued, float64(len(queue)))
			p.dispatch(ctx, env)

		case <-ticker.C:
			if err := p.metrics.Flush(ctx); err != nil {
				logger.Warnf("[Pipeline] flush 指标失败: %v", err)
			}
		}
	}
}

// startDatasources 每个 datasource 一个 goroutine；全部结束后关闭队列
func (p *Pipeline) startDatasources(ctx context.Context, queue chan datasource.Envelope) {
	var wg sync.WaitGroup
	for _, d := range p.datasources {
		wg.Add(1)
		go func(d registeredDatasource) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("[Pipeline] datasource %s panic: %v", d.id, r)
					p.metrics.IncrementCounter(metrics.DatasourceErrors, 1, metrics.L("datasource", d.id.String()))
				}
			}()

			err := d.ds.Consume(ctx, d.id, queue, p.metrics)
			switch {
			case err == nil, errors.Is(err, context.Canceled):
				logger.Infof("[Pipeline] datasource %s 已结束", d.id)
			default:
				logger.Errorf("[Pipeline] datasource %s 出错: %v", d.id, err)
				p.metrics.IncrementCounter(metrics.DatasourceErrors, 1, metrics.L("datasource", d.id.String()))
			}
		}(d)
	}

	go func() {
		wg.Wait()
		close(queue)
	}()
}

func (p *Pipeline) shutdownMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.metrics.Flush(ctx); err != nil {
		logger.Warnf("[Pipeline] flush 指标失败: %v", err)
	}
	if err := p.metrics.Shutdown(ctx); err != nil {
		logger.Warnf("[Pipeline] 关闭指标失败: %v", err)
	}
}
