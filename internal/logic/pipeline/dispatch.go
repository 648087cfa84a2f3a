package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/logic/instruction"
	"sol-ingest/internal/metrics"
	"sol-ingest/pkg/logger"
)

var tracer = otel.Tracer("sol-ingest/pipeline")

// dispatch 将一条更新按注册顺序交给对应类型的全部 pipe。
// 单个 pipe 失败只记录日志，继续执行其余 pipe。
func (p *Pipeline) dispatch(ctx context.Context, env datasource.Envelope) {
	start := time.Now()
	p.metrics.IncrementCounter(metrics.UpdatesReceived, 1)

	if env.Update == nil {
		logger.Warnf("[Pipeline] 空更新, datasource=%s", env.ID)
		p.metrics.IncrementCounter(metrics.UpdatesFailed, 1)
		return
	}

	// 未初始化 telemetry 时为 no-op tracer
	ctx, span := tracer.Start(ctx, "pipeline.dispatch", trace.WithAttributes(
		attribute.String("update.kind", env.Update.Kind().String()),
		attribute.String("datasource", env.ID.String()),
		attribute.Int64("slot", int64(env.Update.GetSlot())),
	))
	defer span.End()

	var failed int
	switch u := env.Update.(type) {
	case *core.AccountUpdate:
		failed = p.dispatchAccount(ctx, env.ID, u)
		p.metrics.IncrementCounter(metrics.AccountUpdatesProcessed, 1)
	case *core.TransactionUpdate:
		failed = p.dispatchTransaction(ctx, env.ID, u)
		p.metrics.IncrementCounter(metrics.TransactionUpdatesProcessed, 1)
	case *core.AccountDeletion:
		failed = p.dispatchAccountDeletion(ctx, env.ID, u)
		p.metrics.IncrementCounter(metrics.AccountDeletionsProcessed, 1)
	case *core.BlockDetails:
		failed = p.dispatchBlockDetails(ctx, env.ID, u)
		p.metrics.IncrementCounter(metrics.BlockDetailsProcessed, 1)
	default:
		logger.Warnf("[Pipeline] 未知更新类型 %T, datasource=%s", env.Update, env.ID)
		failed = 1
	}

	elapsed := time.Since(start)
	p.metrics.IncrementCounter(metrics.UpdatesProcessed, 1)
	if failed > 0 {
		p.metrics.IncrementCounter(metrics.UpdatesFailed, 1)
		span.SetStatus(codes.Error, "pipe failed")
		span.SetAttributes(attribute.Int("pipe.failures", failed))
	} else {
		p.metrics.IncrementCounter(metrics.UpdatesSuccessful, 1)
	}
	p.metrics.RecordHistogram(metrics.UpdatesProcessTimeNanos, float64(elapsed.Nanoseconds()))
	p.metrics.RecordHistogram(metrics.UpdatesProcessTimeMillis, float64(elapsed.Microseconds())/1000)
}

func (p *Pipeline) dispatchAccount(ctx context.Context, id core.DatasourceID, u *core.AccountUpdate) (failed int) {
	meta := core.AccountMetadata{
		Slot:                 u.Slot,
		Pubkey:               u.Pubkey,
		TransactionSignature: u.TransactionSignature,
	}
	for _, ap := range p.accountPipes {
		if err := ap.Run(ctx, id, meta, &u.Account, p.metrics); err != nil {
			failed++
			logger.Errorf("[Pipeline] account pipe 失败, datasource=%s, slot=%d, pubkey=%s: %v",
				id, u.Slot, u.Pubkey, err)
		}
	}
	return failed
}

func (p *Pipeline) dispatchAccountDeletion(ctx context.Context, id core.DatasourceID, u *core.AccountDeletion) (failed int) {
	for _, dp := range p.accountDeletionPipes {
		if err := dp.Run(ctx, id, u, p.metrics); err != nil {
			failed++
			logger.Errorf("[Pipeline] account deletion pipe 失败, datasource=%s, slot=%d, pubkey=%s: %v",
				id, u.Slot, u.Pubkey, err)
		}
	}
	return failed
}

func (p *Pipeline) dispatchBlockDetails(ctx context.Context, id core.DatasourceID, u *core.BlockDetails) (failed int) {
	for _, bp := range p.blockDetailsPipes {
		if err := bp.Run(ctx, id, u, p.metrics); err != nil {
			failed++
			logger.Errorf("[Pipeline] block details pipe 失败, datasource=%s, slot=%d: %v", id, u.Slot, err)
		}
	}
	return failed
}

// dispatchTransaction 构建调用树后：
//   - 每个指令 pipe 按先序遍历对每个节点调用一次（父节点先于子节点）；
//   - 每个交易 pipe 针对整棵树调用一次。
func (p *Pipeline) dispatchTransaction(ctx context.Context, id core.DatasourceID, u *core.TransactionUpdate) (failed int) {
	if len(p.instructionPipes) == 0 && len(p.transactionPipes) == 0 {
		return 0
	}

	txMeta, err := core.NewTransactionMetadata(u)
	if err != nil {
		logger.Errorf("[Pipeline] 解析交易元数据失败, datasource=%s, slot=%d, tx=%s: %v", id, u.Slot, u.Signature, err)
		return 1
	}

	nested, err := instruction.NestedFromTransaction(txMeta)
	if err != nil {
		logger.Errorf("[Pipeline] 展开交易指令失败, datasource=%s, slot=%d, tx=%s: %v", id, u.Slot, u.Signature, err)
		return 1
	}

	if len(p.instructionPipes) > 0 {
		nested.Walk(func(ix *core.NestedInstruction) bool {
			for _, ip := range p.instructionPipes {
				if err := ip.Run(ctx, id, ix, p.metrics); err != nil {
					failed++
					logger.Errorf("[Pipeline] instruction pipe 失败, datasource=%s, slot=%d, tx=%s, path=%v: %v",
						id, u.Slot, u.Signature, ix.Metadata.AbsolutePath, err)
				}
			}
			return true
		})
	}

	for _, tp := range p.transactionPipes {
		if err := tp.Run(ctx, id, txMeta, nested, p.metrics); err != nil {
			failed++
			logger.Errorf("[Pipeline] transaction pipe 失败, datasource=%s, slot=%d, tx=%s: %v",
				id, u.Slot, u.Signature, err)
		}
	}
	return failed
}
