package pipe

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/metrics"
)

// AccountDeletionPipe 账户删除 pipe，删除事件无需解码
type AccountDeletionPipe interface {
	Name() string
	Run(ctx context.Context, id core.DatasourceID, deletion *core.AccountDeletion, m *metrics.MetricsCollection) error
}

type accountDeletionPipe struct {
	name      string
	processor Processor[*core.AccountDeletion]
	filters   []filter.Filter
}

func NewAccountDeletionPipe(name string, processor Processor[*core.AccountDeletion], filters ...filter.Filter) AccountDeletionPipe {
	return &accountDeletionPipe{name: name, processor: processor, filters: filters}
}

func (p *accountDeletionPipe) Name() string { return p.name }

func (p *accountDeletionPipe) Run(ctx context.Context, id core.DatasourceID, deletion *core.AccountDeletion, m *metrics.MetricsCollection) error {
	return observe(p.name, m, func() (outcome, error) {
		for _, f := range p.filters {
			if !f.FilterAccountDeletion(id, deletion) {
				return outcomeSkipped, nil
			}
		}
		return outcomeProcessed, p.processor.Process(ctx, deletion, m)
	})
}
