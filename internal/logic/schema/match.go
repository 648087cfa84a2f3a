package schema

import "sol-ingest/internal/logic/core"

// Matched 一个带 label 的 Instruction 节点的匹配结果
type Matched[T any] struct {
	Metadata    core.InstructionMetadata
	Instruction *core.DecodedInstruction[T]
	Inner       MatchResult[T] // 嵌套 schema 中带 label 节点的匹配结果
}

// MatchResult label -> 匹配结果
type MatchResult[T any] map[string]*Matched[T]

// Get 按 label 取匹配结果，支持多级路径：Get("swap", "transfer_a")
func (r MatchResult[T]) Get(labels ...string) (*Matched[T], bool) {
	cur := r
	var m *Matched[T]
	for _, label := range labels {
		var ok bool
		if m, ok = cur[label]; !ok {
			return nil, false
		}
		cur = m.Inner
	}
	return m, m != nil
}

// Match 在指令森林上匹配 schema。
//
// 逐层用两个游标同时推进 schema 节点与候选指令：
//   - Any 消费一条候选指令，不检查内容；
//   - Instruction 要求当前候选解码成功且类型相等，并且其子指令递归满足嵌套 schema；
//     不向后搜索，需要跳过的指令必须显式写 Any。
//
// 所有根节点都匹配成功才返回 (result, true)，剩余未消费的候选指令忽略。
// 匹配失败不返回部分结果。
func Match[T Typed](
	s *TransactionSchema,
	decoder core.InstructionDecoder[T],
	instructions core.NestedInstructions,
) (MatchResult[T], bool) {
	return matchLevel(s.root, instructions, decoder)
}

func matchLevel[T Typed](
	nodes []Node,
	candidates core.NestedInstructions,
	decoder core.InstructionDecoder[T],
) (MatchResult[T], bool) {
	result := make(MatchResult[T])
	cursor := 0

	for _, node := range nodes {
		if cursor >= len(candidates) {
			return nil, false
		}
		candidate := candidates[cursor]

		if node.kind == nodeInstruction {
			decoded := decoder.DecodeInstruction(&candidate.Instruction)
			if decoded == nil || any(decoded.Data) == nil || decoded.Data.InstructionType() != node.ixType {
				return nil, false
			}
			inner, ok := matchLevel(node.inner, candidate.Inner, decoder)
			if !ok {
				return nil, false
			}
			if node.label != "" {
				result[node.label] = &Matched[T]{
					Metadata:    candidate.Metadata,
					Instruction: decoded,
					Inner:       inner,
				}
			}
		}
		cursor++
	}
	return result, true
}
