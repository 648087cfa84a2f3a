package pipe

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/metrics"
)

// BlockDetailsPipe 区块元数据 pipe
type BlockDetailsPipe interface {
	Name() string
	Run(ctx context.Context, id core.DatasourceID, details *core.BlockDetails, m *metrics.MetricsCollection) error
}

type blockDetailsPipe struct {
	name      string
	processor Processor[*core.BlockDetails]
	filters   []filter.Filter
}

func NewBlockDetailsPipe(name string, processor Processor[*core.BlockDetails], filters ...filter.Filter) BlockDetailsPipe {
	return &blockDetailsPipe{name: name, processor: processor, filters: filters}
}

func (p *blockDetailsPipe) Name() string { return p.name }

func (p *blockDetailsPipe) Run(ctx context.Context, id core.DatasourceID, details *core.BlockDetails, m *metrics.MetricsCollection) error {
	return observe(p.name, m, func() (outcome, error) {
		for _, f := range p.filters {
			if !f.FilterBlockDetails(id, details) {
				return outcomeSkipped, nil
			}
		}
		return outcomeProcessed, p.processor.Process(ctx, details, m)
	})
}
