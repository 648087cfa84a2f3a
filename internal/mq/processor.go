package mq

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/metrics"
)

// InstructionEventBuilder 把单条解码后的指令转成事件，返回 nil 表示无需发布
type InstructionEventBuilder[T any] func(input pipe.InstructionInput[T]) (*Event, error)

// TransactionEventBuilder 把一笔交易的解码结果转成若干事件
type TransactionEventBuilder[T any] func(input pipe.TransactionInput[T]) ([]*Event, error)

// InstructionEventProcessor 指令 pipe 的处理器，事件 ID 由指令绝对路径生成
type InstructionEventProcessor[T any] struct {
	publisher Publisher
	build     InstructionEventBuilder[T]
}

func NewInstructionEventProcessor[T any](publisher Publisher, build func(input pipe.InstructionInput[T]) (*Event, error)) *InstructionEventProcessor[T] {
	return &InstructionEventProcessor[T]{publisher: publisher, build: build}
}

func (p *InstructionEventProcessor[T]) Process(ctx context.Context, input pipe.InstructionInput[T], m *metrics.MetricsCollection) error {
	event, err := p.build(input)
	if err != nil || event == nil {
		return err
	}

	if event.ID == 0 {
		var txIndex uint64
		if tx := input.Metadata.TransactionMetadata; tx != nil && tx.Index != nil {
			txIndex = *tx.Index
		}
		if event.ID, err = BuildEventID(txIndex, input.Metadata.AbsolutePath); err != nil {
			return err
		}
	}
	return publish(ctx, p.publisher, []*Event{event}, m)
}

// TransactionEventProcessor 交易 pipe 的处理器
type TransactionEventProcessor[T any] struct {
	publisher Publisher
	build     TransactionEventBuilder[T]
}

func NewTransactionEventProcessor[T any](publisher Publisher, build func(input pipe.TransactionInput[T]) ([]*Event, error)) *TransactionEventProcessor[T] {
	return &TransactionEventProcessor[T]{publisher: publisher, build: build}
}

func (p *TransactionEventProcessor[T]) Process(ctx context.Context, input pipe.TransactionInput[T], m *metrics.MetricsCollection) error {
	events, err := p.build(input)
	if err != nil || len(events) == 0 {
		return err
	}
	return publish(ctx, p.publisher, events, m)
}

// AccountEventProcessor 账户 pipe 的处理器，build 返回 nil 表示无需发布
type AccountEventProcessor[T any] struct {
	publisher Publisher
	build     func(input pipe.AccountInput[T]) (*Event, error)
}

func NewAccountEventProcessor[T any](publisher Publisher, build func(input pipe.AccountInput[T]) (*Event, error)) *AccountEventProcessor[T] {
	return &AccountEventProcessor[T]{publisher: publisher, build: build}
}

func (p *AccountEventProcessor[T]) Process(ctx context.Context, input pipe.AccountInput[T], m *metrics.MetricsCollection) error {
	event, err := p.build(input)
	if err != nil || event == nil {
		return err
	}
	return publish(ctx, p.publisher, []*Event{event}, m)
}

// DeletionEventProcessor 账户删除 pipe 的处理器
type DeletionEventProcessor struct {
	publisher Publisher
	build     func(deletion *core.AccountDeletion) *Event
}

func NewDeletionEventProcessor(publisher Publisher, build func(deletion *core.AccountDeletion) *Event) *DeletionEventProcessor {
	return &DeletionEventProcessor{publisher: publisher, build: build}
}

func (p *DeletionEventProcessor) Process(ctx context.Context, deletion *core.AccountDeletion, m *metrics.MetricsCollection) error {
	event := p.build(deletion)
	if event == nil {
		return nil
	}
	return publish(ctx, p.publisher, []*Event{event}, m)
}

func publish(ctx context.Context, publisher Publisher, events []*Event, m *metrics.MetricsCollection) error {
	topic := metrics.L("topic", publisher.Topic())
	sent, err := publisher.Publish(ctx, events)
	if sent > 0 {
		m.IncrementCounter(metrics.EventsPublished, uint64(sent), topic)
	}
	if failed := len(events) - sent; failed > 0 {
		m.IncrementCounter(metrics.EventsPublishFailed, uint64(failed), topic)
	}
	return err
}
