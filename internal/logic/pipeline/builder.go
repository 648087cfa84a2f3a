package pipeline

import (
	"fmt"
	"time"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/metrics"
)

const (
	DefaultChannelBufferSize    = 1_000
	DefaultMetricsFlushInterval = 5 * time.Second
)

// ShutdownStrategy 收到停止信号后的行为
type ShutdownStrategy uint8

const (
	// ShutdownProcessPending 停止 datasource 生产，继续处理队列中已有的更新后退出（默认）
	ShutdownProcessPending ShutdownStrategy = iota
	// ShutdownImmediate 停止 datasource 生产并立即退出，不处理队列中剩余的更新
	ShutdownImmediate
)

func (s ShutdownStrategy) String() string {
	switch s {
	case ShutdownProcessPending:
		return "process_pending"
	case ShutdownImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// ParseShutdownStrategy 解析配置中的关闭策略，空串为默认值
func ParseShutdownStrategy(s string) (ShutdownStrategy, error) {
	switch s {
	case "", "process_pending":
		return ShutdownProcessPending, nil
	case "immediate":
		return ShutdownImmediate, nil
	default:
		return 0, fmt.Errorf("unknown shutdown strategy %q", s)
	}
}

type registeredDatasource struct {
	id core.DatasourceID
	ds datasource.Datasource
}

// Builder 组装 pipeline，Build 时校验配置
type Builder struct {
	datasources          []registeredDatasource
	accountPipes         []pipe.AccountPipe
	accountDeletionPipes []pipe.AccountDeletionPipe
	instructionPipes     []pipe.InstructionPipe
	transactionPipes     []pipe.TransactionPipe
	blockDetailsPipes    []pipe.BlockDetailsPipe
	metrics              []metrics.Metrics
	metricsFlushInterval time.Duration
	shutdownStrategy     ShutdownStrategy
	channelBufferSize    int
}

func NewBuilder() *Builder {
	return &Builder{
		metricsFlushInterval: DefaultMetricsFlushInterval,
		channelBufferSize:    DefaultChannelBufferSize,
	}
}

// Datasource 注册 datasource，使用随机生成的 ID
func (b *Builder) Datasource(ds datasource.Datasource) *Builder {
	return b.DatasourceWithID(ds, core.NewUniqueDatasourceID())
}

// DatasourceWithID 注册 datasource 并指定 ID，供 DatasourceFilter 使用
func (b *Builder) DatasourceWithID(ds datasource.Datasource, id core.DatasourceID) *Builder {
	b.datasources = append(b.datasources, registeredDatasource{id: id, ds: ds})
	return b
}

func (b *Builder) Account(p pipe.AccountPipe) *Builder {
	b.accountPipes = append(b.accountPipes, p)
	return b
}

func (b *Builder) AccountDeletion(p pipe.AccountDeletionPipe) *Builder {
	b.accountDeletionPipes = append(b.accountDeletionPipes, p)
	return b
}

func (b *Builder) Instruction(p pipe.InstructionPipe) *Builder {
	b.instructionPipes = append(b.instructionPipes, p)
	return b
}

func (b *Builder) Transaction(p pipe.TransactionPipe) *Builder {
	b.transactionPipes = append(b.transactionPipes, p)
	return b
}

func (b *Builder) BlockDetails(p pipe.BlockDetailsPipe) *Builder {
	b.blockDetailsPipes = append(b.blockDetailsPipes, p)
	return b
}

func (b *Builder) Metrics(m metrics.Metrics) *Builder {
	b.metrics = append(b.metrics, m)
	return b
}

func (b *Builder) MetricsFlushInterval(d time.Duration) *Builder {
	if d > 0 {
		b.metricsFlushInterval = d
	}
	return b
}

func (b *Builder) ShutdownStrategy(s ShutdownStrategy) *Builder {
	b.shutdownStrategy = s
	return b
}

func (b *Builder) ChannelBufferSize(n int) *Builder {
	if n > 0 {
		b.channelBufferSize = n
	}
	return b
}

// Build 校验每类已注册的 pipe 都有 datasource 能产生对应的更新，任何 datasource 启动之前失败
func (b *Builder) Build() (*Pipeline, error) {
	if len(b.datasources) == 0 {
		return nil, ErrNoDatasource
	}

	required := []struct {
		kind  core.UpdateKind
		pipes []string
	}{
		{core.UpdateKindAccount, pipeNames(b.accountPipes)},
		{core.UpdateKindAccountDeletion, pipeNames(b.accountDeletionPipes)},
		{core.UpdateKindTransaction, append(pipeNames(b.instructionPipes), pipeNames(b.transactionPipes)...)},
		{core.UpdateKindBlockDetails, pipeNames(b.blockDetailsPipes)},
	}
	for _, r := range required {
		if len(r.pipes) == 0 {
			continue
		}
		if !b.produced(r.kind) {
			return nil, &ConfigError{Kind: r.kind, Pipes: r.pipes}
		}
	}

	return &Pipeline{
		datasources:          b.datasources,
		accountPipes:         b.accountPipes,
		accountDeletionPipes: b.accountDeletionPipes,
		instructionPipes:     b.instructionPipes,
		transactionPipes:     b.transactionPipes,
		blockDetailsPipes:    b.blockDetailsPipes,
		metrics:              metrics.NewMetricsCollection(b.metrics...),
		metricsFlushInterval: b.metricsFlushInterval,
		shutdownStrategy:     b.shutdownStrategy,
		channelBufferSize:    b.channelBufferSize,
	}, nil
}

func (b *Builder) produced(kind core.UpdateKind) bool {
	for _, d := range b.datasources {
		if datasource.Produces(d.ds, kind) {
			return true
		}
	}
	return false
}

func pipeNames[P interface{ Name() string }](pipes []P) []string {
	names := make([]string, 0, len(pipes))
	for _, p := range pipes {
		names = append(names, p.Name())
	}
	return names
}
