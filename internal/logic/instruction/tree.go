package instruction

import "sol-ingest/internal/logic/core"

// BuildNestedInstructions 按 StackHeight 将展平的指令还原为调用树（森林）。
//
// 维护一个按高度递增的栈：对每条高度为 h 的指令，弹栈直到栈顶高度为 h-1，
// 然后挂到栈顶之下；栈被弹空时作为新的根节点。高度不连续（例如 1 之后直接出现 3）
// 或高度为 0 的指令同样成为根节点，任何指令都不会被丢弃。
//
// 先序遍历结果与输入顺序一致。
func BuildNestedInstructions(list []WithMetadata) core.NestedInstructions {
	roots := make(core.NestedInstructions, 0, len(list))
	stack := make([]*core.NestedInstruction, 0, 8)

	for i := range list {
		node := &core.NestedInstruction{
			Metadata:    list[i].Metadata,
			Instruction: list[i].Instruction,
		}
		h := node.Metadata.StackHeight

		if h <= 1 {
			stack = stack[:0]
		}
		for len(stack) > 0 && stack[len(stack)-1].Metadata.StackHeight != h-1 {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			node.Metadata.AbsolutePath = []uint16{uint16(len(roots))}
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			node.Metadata.AbsolutePath = childPath(parent.Metadata.AbsolutePath, len(parent.Inner))
			parent.Inner = append(parent.Inner, node)
		}
		stack = append(stack, node)
	}
	return roots
}

// NestedFromTransaction 展平交易指令并构建调用树
func NestedFromTransaction(txMeta *core.TransactionMetadata) (core.NestedInstructions, error) {
	list, err := ExtractInstructionsWithMetadata(txMeta)
	if err != nil {
		return nil, err
	}
	return BuildNestedInstructions(list), nil
}

func childPath(parent []uint16, pos int) []uint16 {
	path := make([]uint16, len(parent)+1)
	copy(path, parent)
	path[len(parent)] = uint16(pos)
	return path
}
