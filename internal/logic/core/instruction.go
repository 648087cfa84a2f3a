package core

import "sol-ingest/internal/types"

// AccountMeta 指令引用的账户及其权限
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction 一条原始指令（主指令或 CPI 指令），账户下标已解析为真实 Pubkey
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// InstructionMetadata 单条指令的上下文
type InstructionMetadata struct {
	TransactionMetadata *TransactionMetadata // 所属交易，所有指令共享
	StackHeight         uint32               // 1 表示主指令，每层 CPI 加 1
	Index               uint32               // 所属主指令在交易中的序号（从 0 开始）
	AbsolutePath        []uint16             // 从根到当前节点的下标路径，例如 [2, 0, 1]
}

// NestedInstruction 指令调用树上的一个节点，Inner 为其直接 CPI 调用（按执行顺序）
type NestedInstruction struct {
	Metadata    InstructionMetadata
	Instruction Instruction
	Inner       NestedInstructions
}

// NestedInstructions 同一层级的有序指令列表；交易级别即为以主指令为根的森林
type NestedInstructions []*NestedInstruction

// Walk 先序遍历（父节点先于子节点），fn 返回 false 时提前结束
func (n NestedInstructions) Walk(fn func(ix *NestedInstruction) bool) bool {
	for _, ix := range n {
		if !fn(ix) {
			return false
		}
		if !ix.Inner.Walk(fn) {
			return false
		}
	}
	return true
}

// Flatten 按先序遍历顺序展开为一维列表
func (n NestedInstructions) Flatten() []*NestedInstruction {
	out := make([]*NestedInstruction, 0, n.Len())
	n.Walk(func(ix *NestedInstruction) bool {
		out = append(out, ix)
		return true
	})
	return out
}

// Len 森林中的节点总数
func (n NestedInstructions) Len() int {
	total := 0
	for _, ix := range n {
		total += 1 + ix.Inner.Len()
	}
	return total
}
