package pipe

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/logic/schema"
	"sol-ingest/internal/metrics"
)

// TransactionPipe 交易 pipe，每笔交易针对整棵调用树调用一次
type TransactionPipe interface {
	Name() string
	Run(ctx context.Context, id core.DatasourceID, meta *core.TransactionMetadata, ixs core.NestedInstructions, m *metrics.MetricsCollection) error
}

type transactionPipe[T schema.Typed] struct {
	name      string
	schema    *schema.TransactionSchema
	decoder   core.InstructionDecoder[T]
	processor Processor[TransactionInput[T]]
	filters   []filter.Filter
}

// NewTransactionPipe 绑定 schema、解码器与处理器。
// s 为 nil 时每笔交易都会调用处理器；否则只有 schema 完整匹配时才调用。
func NewTransactionPipe[T schema.Typed](
	name string,
	s *schema.TransactionSchema,
	decoder core.InstructionDecoder[T],
	processor Processor[TransactionInput[T]],
	filters ...filter.Filter,
) TransactionPipe {
	return &transactionPipe[T]{name: name, schema: s, decoder: decoder, processor: processor, filters: filters}
}

func (p *transactionPipe[T]) Name() string { return p.name }

func (p *transactionPipe[T]) Run(
	ctx context.Context,
	id core.DatasourceID,
	meta *core.TransactionMetadata,
	ixs core.NestedInstructions,
	m *metrics.MetricsCollection,
) error {
	return observe(p.name, m, func() (outcome, error) {
		for _, f := range p.filters {
			if !f.FilterTransaction(id, meta, ixs) {
				return outcomeSkipped, nil
			}
		}

		var match schema.MatchResult[T]
		if p.schema != nil {
			var ok bool
			if match, ok = schema.Match(p.schema, p.decoder, ixs); !ok {
				return outcomeSkipped, nil
			}
		}

		return outcomeProcessed, p.processor.Process(ctx, TransactionInput[T]{
			Metadata:     meta,
			Instructions: decodeAll(p.decoder, ixs),
			Match:        match,
		}, m)
	})
}

// decodeAll 先序解码全部指令，跳过不属于该解码器的指令
func decodeAll[T any](decoder core.InstructionDecoder[T], ixs core.NestedInstructions) []DecodedWithMetadata[T] {
	out := make([]DecodedWithMetadata[T], 0, ixs.Len())
	ixs.Walk(func(ix *core.NestedInstruction) bool {
		if decoded := decoder.DecodeInstruction(&ix.Instruction); decoded != nil {
			out = append(out, DecodedWithMetadata[T]{Metadata: ix.Metadata, Instruction: decoded})
		}
		return true
	})
	return out
}
