package pipe

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/metrics"
)

// InstructionPipe 指令 pipe，pipeline 对调用树中每个节点各调用一次
type InstructionPipe interface {
	Name() string
	Run(ctx context.Context, id core.DatasourceID, ix *core.NestedInstruction, m *metrics.MetricsCollection) error
}

type instructionPipe[T any] struct {
	name      string
	decoder   core.InstructionDecoder[T]
	processor Processor[InstructionInput[T]]
	filters   []filter.Filter
}

func NewInstructionPipe[T any](
	name string,
	decoder core.InstructionDecoder[T],
	processor Processor[InstructionInput[T]],
	filters ...filter.Filter,
) InstructionPipe {
	return &instructionPipe[T]{name: name, decoder: decoder, processor: processor, filters: filters}
}

func (p *instructionPipe[T]) Name() string { return p.name }

func (p *instructionPipe[T]) Run(ctx context.Context, id core.DatasourceID, ix *core.NestedInstruction, m *metrics.MetricsCollection) error {
	return observe(p.name, m, func() (outcome, error) {
		for _, f := range p.filters {
			if !f.FilterInstruction(id, ix) {
				return outcomeSkipped, nil
			}
		}

		decoded := p.decoder.DecodeInstruction(&ix.Instruction)
		if decoded == nil {
			return outcomeSkipped, nil
		}

		return outcomeProcessed, p.processor.Process(ctx, InstructionInput[T]{
			Metadata: ix.Metadata,
			Decoded:  decoded,
			Nested:   ix,
		}, m)
	})
}
