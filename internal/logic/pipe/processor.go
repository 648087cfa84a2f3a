package pipe

import (
	"context"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/schema"
	"sol-ingest/internal/metrics"
)

// Processor 处理解码后的输入，返回的错误由 pipeline 记录，不会重试
type Processor[In any] interface {
	Process(ctx context.Context, input In, m *metrics.MetricsCollection) error
}

// ProcessorFunc 函数适配器
type ProcessorFunc[In any] func(ctx context.Context, input In, m *metrics.MetricsCollection) error

func (f ProcessorFunc[In]) Process(ctx context.Context, input In, m *metrics.MetricsCollection) error {
	return f(ctx, input, m)
}

// AccountInput 账户 pipe 的处理输入
type AccountInput[T any] struct {
	Metadata core.AccountMetadata
	Decoded  *core.DecodedAccount[T]
	Raw      *core.Account
}

// InstructionInput 指令 pipe 的处理输入，Nested 为该指令所在子树（含 CPI 子指令）
type InstructionInput[T any] struct {
	Metadata core.InstructionMetadata
	Decoded  *core.DecodedInstruction[T]
	Nested   *core.NestedInstruction
}

// DecodedWithMetadata 交易中一条解码成功的指令
type DecodedWithMetadata[T any] struct {
	Metadata    core.InstructionMetadata
	Instruction *core.DecodedInstruction[T]
}

// TransactionInput 交易 pipe 的处理输入。
// 未绑定 schema 时 Match 为 nil；Instructions 为先序遍历中解码成功的全部指令。
type TransactionInput[T any] struct {
	Metadata     *core.TransactionMetadata
	Instructions []DecodedWithMetadata[T]
	Match        schema.MatchResult[T]
}
