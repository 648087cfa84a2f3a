package service

import (
	"fmt"
	"time"

	"sol-ingest/internal/config"
	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/logic/datasource/rpcblock"
	"sol-ingest/internal/logic/datasource/yellowstone"
	"sol-ingest/internal/logic/decoder/pumpfun"
	"sol-ingest/internal/logic/decoder/spltoken"
	"sol-ingest/internal/logic/eventparser"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/logic/pipeline"
	"sol-ingest/internal/logic/progress"
	"sol-ingest/internal/mq"
	"sol-ingest/internal/svc"
	"sol-ingest/pkg/logger"
)

// Options 运行模式。Crawl 为 true 时只启用 RPC 爬取 [From, To] 区间，爬完即退出。
type Options struct {
	Crawl bool
	From  uint64
	To    uint64
}

type source struct {
	ds       datasource.Datasource
	id       core.DatasourceID
	progress int16
}

// BuildPipeline 按配置装配 datasource 与 pipe：
//   - SPL Token 指令、token account 更新与账户关闭发布到 token topic；
//   - Pump.fun 交易与发币事件发布到 event topic；
//   - 区块元数据按来源写入进度。
//
// 未配置的依赖对应的 pipe 不注册。
func BuildPipeline(svcCtx *svc.ServiceContext, opt Options) (*pipeline.Pipeline, error) {
	c := svcCtx.Config

	sources, err := buildSources(c, svcCtx.ProgressManager, opt)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, pipeline.ErrNoDatasource
	}

	strategy, err := pipeline.ParseShutdownStrategy(c.PipelineConf.ShutdownStrategy)
	if err != nil {
		return nil, err
	}

	b := pipeline.NewBuilder().
		ChannelBufferSize(c.PipelineConf.ChannelBufferSize).
		ShutdownStrategy(strategy).
		MetricsFlushInterval(time.Duration(c.PipelineConf.MetricsFlushIntervalMs) * time.Millisecond)
	for _, m := range svcCtx.MetricsBackends {
		b.Metrics(m)
	}
	for _, s := range sources {
		b.DatasourceWithID(s.ds, s.id)
	}

	registerPipes(b, svcCtx, sources)
	return b.Build()
}

func buildSources(c *config.Config, pm *progress.ProgressManager, opt Options) ([]source, error) {
	var sources []source

	if c.Yellowstone.Enabled && !opt.Crawl {
		ds, err := yellowstone.New(c.Yellowstone.ToOptions())
		if err != nil {
			return nil, fmt.Errorf("yellowstone datasource: %w", err)
		}
		sources = append(sources, source{ds: ds, id: core.NewDatasourceID("yellowstone"), progress: progress.SourceYellowstone})
	}

	if c.RpcCrawler.Enabled || opt.Crawl {
		rpcOpt := c.RpcCrawler.ToOptions()
		if opt.Crawl {
			rpcOpt.StartSlot, rpcOpt.EndSlot = opt.From, opt.To
		}
		var dsOpts []rpcblock.Option
		if pm != nil {
			dsOpts = append(dsOpts, rpcblock.WithSlotGate(pm))
		}
		ds, err := rpcblock.New(rpcOpt, dsOpts...)
		if err != nil {
			return nil, fmt.Errorf("rpc crawler datasource: %w", err)
		}
		sources = append(sources, source{ds: ds, id: core.NewDatasourceID("rpc"), progress: progress.SourceRpc})
	}
	return sources, nil
}

func registerPipes(b *pipeline.Builder, svcCtx *svc.ServiceContext, sources []source) {
	produced := func(kind core.UpdateKind) bool {
		for _, s := range sources {
			if datasource.Produces(s.ds, kind) {
				return true
			}
		}
		return false
	}
	tokenPrograms := filter.NewProgramFilter(spltoken.TokenProgram, spltoken.Token2022Program)

	if pub := svcCtx.TokenPublisher; pub != nil {
		if produced(core.UpdateKindTransaction) {
			b.Instruction(pipe.NewInstructionPipe[spltoken.Instruction](
				"spltoken_events",
				spltoken.InstructionDecoder{},
				mq.NewInstructionEventProcessor(pub, eventparser.TokenEvent),
				tokenPrograms,
			))
		}
		if produced(core.UpdateKindAccount) {
			b.Account(pipe.NewAccountPipe[spltoken.Account](
				"token_balances",
				spltoken.AccountDecoder{},
				mq.NewAccountEventProcessor(pub, eventparser.TokenBalanceEvent),
			))
		}
		if produced(core.UpdateKindAccountDeletion) {
			b.AccountDeletion(pipe.NewAccountDeletionPipe(
				"account_closed",
				mq.NewDeletionEventProcessor(pub, eventparser.AccountClosedEvent),
			))
		}
	}

	if pub := svcCtx.EventPublisher; pub != nil && produced(core.UpdateKindTransaction) {
		pumpPrograms := filter.NewProgramFilter(pumpfun.ProgramID)
		b.Transaction(pipe.NewTransactionPipe[pumpfun.Instruction](
			"pumpfun_trades",
			nil,
			pumpfun.Decoder{},
			mq.NewTransactionEventProcessor(pub, eventparser.PumpfunTradeEvents),
			pumpPrograms,
		))
		for i, s := range eventparser.PumpfunCreateSchemas() {
			b.Transaction(pipe.NewTransactionPipe[pumpfun.Instruction](
				fmt.Sprintf("pumpfun_create_%d", i),
				s,
				pumpfun.Decoder{},
				mq.NewTransactionEventProcessor(pub, eventparser.PumpfunCreateEvents),
				pumpPrograms,
			))
		}
	}

	if pm := svcCtx.ProgressManager; pm != nil {
		for _, s := range sources {
			if !datasource.Produces(s.ds, core.UpdateKindBlockDetails) {
				continue
			}
			b.BlockDetails(pipe.NewBlockDetailsPipe(
				"progress_"+progress.SourceName(s.progress),
				progress.NewSlotProcessor(pm, s.progress),
				filter.NewDatasourceFilter(s.id),
			))
		}
	}

	logger.Infof("[Service] pipes 已注册, sources=%d, token=%t, event=%t, progress=%t",
		len(sources), svcCtx.TokenPublisher != nil, svcCtx.EventPublisher != nil, svcCtx.ProgressManager != nil)
}
