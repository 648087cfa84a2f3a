package core

import "sol-ingest/internal/types"

// DecodedInstruction 解码后的指令，Data 为具体程序的指令类型
type DecodedInstruction[T any] struct {
	ProgramID types.Pubkey
	Data      T
	Accounts  []AccountMeta
}

// InstructionDecoder 指令解码能力。
// 指令不属于该解码器（program id 或 discriminator 不匹配）时返回 nil，这不是错误。
// 实现必须是纯函数，不得修改内部状态。
type InstructionDecoder[T any] interface {
	DecodeInstruction(ix *Instruction) *DecodedInstruction[T]
}

// DecodedAccount 解码后的账户，保留原始 lamports/owner/executable/rent_epoch
type DecodedAccount[T any] struct {
	Lamports   uint64
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	Data       T
}

// AccountDecoder 账户解码能力，语义同 InstructionDecoder
type AccountDecoder[T any] interface {
	DecodeAccount(account *Account) *DecodedAccount[T]
}

// InstructionDecoderFunc 函数适配器
type InstructionDecoderFunc[T any] func(ix *Instruction) *DecodedInstruction[T]

func (f InstructionDecoderFunc[T]) DecodeInstruction(ix *Instruction) *DecodedInstruction[T] {
	return f(ix)
}

// AccountDecoderFunc 函数适配器
type AccountDecoderFunc[T any] func(account *Account) *DecodedAccount[T]

func (f AccountDecoderFunc[T]) DecodeAccount(account *Account) *DecodedAccount[T] {
	return f(account)
}
