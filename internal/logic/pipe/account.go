package pipe

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/metrics"
)

// AccountPipe 账户更新 pipe
type AccountPipe interface {
	Name() string
	Run(ctx context.Context, id core.DatasourceID, meta core.AccountMetadata, account *core.Account, m *metrics.MetricsCollection) error
}

type accountPipe[T any] struct {
	name      string
	decoder   core.AccountDecoder[T]
	processor Processor[AccountInput[T]]
	filters   []filter.Filter
}

// NewAccountPipe 绑定账户解码器与处理器
func NewAccountPipe[T any](
	name string,
	decoder core.AccountDecoder[T],
	processor Processor[AccountInput[T]],
	filters ...filter.Filter,
) AccountPipe {
	return &accountPipe[T]{name: name, decoder: decoder, processor: processor, filters: filters}
}

func (p *accountPipe[T]) Name() string { return p.name }

func (p *accountPipe[T]) Run(
	ctx context.Context,
	id core.DatasourceID,
	meta core.AccountMetadata,
	account *core.Account,
	m *metrics.MetricsCollection,
) error {
	return observe(p.name, m, func() (outcome, error) {
		for _, f := range p.filters {
			if !f.FilterAccount(id, &meta, account) {
				return outcomeSkipped, nil
			}
		}

		decoded := p.decoder.DecodeAccount(account)
		if decoded == nil {
			return outcomeSkipped, nil
		}

		return outcomeProcessed, p.processor.Process(ctx, AccountInput[T]{
			Metadata: meta,
			Decoded:  decoded,
			Raw:      account,
		}, m)
	})
}
