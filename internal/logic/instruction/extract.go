package instruction

import (
	"fmt"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

// defaultInnerStackHeight 数据源未提供 stack height 时，inner 指令按第一层 CPI 处理
const defaultInnerStackHeight = 2

// WithMetadata 展平后的一条指令及其上下文
type WithMetadata struct {
	Metadata    core.InstructionMetadata
	Instruction core.Instruction
}

// ExtractInstructionsWithMetadata 将交易的主指令与 inner 指令按执行顺序展平：
// 每条主指令（StackHeight=1）之后紧跟它触发的全部 CPI 指令（StackHeight>=2）。
//
// 账户下标越界说明交易数据不完整，返回错误，由调用方跳过该交易。
func ExtractInstructionsWithMetadata(txMeta *core.TransactionMetadata) ([]WithMetadata, error) {
	msg := txMeta.Message
	accountKeys := txMeta.AccountKeys()

	// inner 指令按所属主指令分组；正常情况下 rawInners 已按 Index 升序，这里不依赖该顺序
	var innersByIndex map[uint32][]core.InnerInstruction
	if txMeta.Meta != nil && len(txMeta.Meta.InnerInstructions) > 0 {
		innersByIndex = make(map[uint32][]core.InnerInstruction, len(txMeta.Meta.InnerInstructions))
		for _, inner := range txMeta.Meta.InnerInstructions {
			innersByIndex[inner.Index] = append(innersByIndex[inner.Index], inner.Instructions...)
		}
	}

	// 预分配容量：假设每条主指令平均含有 2 条 inner 指令
	out := make([]WithMetadata, 0, len(msg.Instructions)*3)

	for i, ix := range msg.Instructions {
		outer, err := resolveInstruction(txMeta, accountKeys, ix.ProgramIDIndex, ix.Accounts, ix.Data)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		out = append(out, WithMetadata{
			Metadata: core.InstructionMetadata{
				TransactionMetadata: txMeta,
				StackHeight:         1,
				Index:               uint32(i),
			},
			Instruction: outer,
		})

		for j, inner := range innersByIndex[uint32(i)] {
			resolved, err := resolveInstruction(txMeta, accountKeys, inner.ProgramIDIndex, inner.Accounts, inner.Data)
			if err != nil {
				return nil, fmt.Errorf("inner instruction %d.%d: %w", i, j, err)
			}
			height := uint32(defaultInnerStackHeight)
			if inner.StackHeight != nil {
				height = *inner.StackHeight
			}
			out = append(out, WithMetadata{
				Metadata: core.InstructionMetadata{
					TransactionMetadata: txMeta,
					StackHeight:         height,
					Index:               uint32(i),
				},
				Instruction: resolved,
			})
		}
	}
	return out, nil
}

// resolveInstruction 将 accountKeys 下标反解为 Pubkey，并补充签名/可写属性
func resolveInstruction(
	txMeta *core.TransactionMetadata,
	accountKeys []types.Pubkey,
	programIDIndex uint32,
	accounts []byte,
	data []byte,
) (core.Instruction, error) {
	if int(programIDIndex) >= len(accountKeys) {
		return core.Instruction{}, fmt.Errorf("program id index %d out of range (%d keys)", programIDIndex, len(accountKeys))
	}

	metas := make([]core.AccountMeta, 0, len(accounts))
	for _, idx := range accounts {
		if int(idx) >= len(accountKeys) {
			return core.Instruction{}, fmt.Errorf("account index %d out of range (%d keys)", idx, len(accountKeys))
		}
		metas = append(metas, core.AccountMeta{
			Pubkey:     accountKeys[idx],
			IsSigner:   txMeta.IsSigner(int(idx)),
			IsWritable: txMeta.IsWritable(int(idx)),
		})
	}

	return core.Instruction{
		ProgramID: accountKeys[programIDIndex],
		Accounts:  metas,
		Data:      data,
	}, nil
}
