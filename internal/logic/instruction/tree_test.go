package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

// mk 构造测试指令，Data[0] 记录输入序号
func mk(heights ...uint32) []WithMetadata {
	out := make([]WithMetadata, len(heights))
	for i, h := range heights {
		out[i] = WithMetadata{
			Metadata:    core.InstructionMetadata{StackHeight: h},
			Instruction: core.Instruction{Data: []byte{byte(i)}},
		}
	}
	return out
}

func order(n core.NestedInstructions) []byte {
	var out []byte
	for _, ix := range n.Flatten() {
		out = append(out, ix.Instruction.Data[0])
	}
	return out
}

func TestBuildNestedInstructions_Shape(t *testing.T) {
	// [1, 2, 3, 2, 1, 2]
	roots := BuildNestedInstructions(mk(1, 2, 3, 2, 1, 2))

	require.Len(t, roots, 2)
	require.Len(t, roots[0].Inner, 2)
	require.Len(t, roots[0].Inner[0].Inner, 1)
	assert.Empty(t, roots[0].Inner[1].Inner)
	require.Len(t, roots[1].Inner, 1)

	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5}, order(roots))

	assert.Equal(t, []uint16{0}, roots[0].Metadata.AbsolutePath)
	assert.Equal(t, []uint16{0, 0, 0}, roots[0].Inner[0].Inner[0].Metadata.AbsolutePath)
	assert.Equal(t, []uint16{0, 1}, roots[0].Inner[1].Metadata.AbsolutePath)
	assert.Equal(t, []uint16{1, 0}, roots[1].Inner[0].Metadata.AbsolutePath)
}

func TestBuildNestedInstructions_Empty(t *testing.T) {
	roots := BuildNestedInstructions(nil)
	assert.Empty(t, roots)
	assert.Equal(t, 0, roots.Len())
}

func TestBuildNestedInstructions_MalformedHeights(t *testing.T) {
	cases := []struct {
		name    string
		heights []uint32
		roots   int
	}{
		{"starts above 1", []uint32{2, 3}, 1},
		{"gap", []uint32{1, 3, 4}, 2},
		{"zero height", []uint32{1, 0, 1}, 3},
		{"gap then back", []uint32{1, 2, 4, 2, 1, 3}, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := mk(c.heights...)
			roots := BuildNestedInstructions(in)
			assert.Len(t, roots, c.roots)
			// 没有任何指令被丢弃，且先序顺序与输入一致
			assert.Equal(t, len(in), roots.Len())
			want := make([]byte, len(in))
			for i := range want {
				want[i] = byte(i)
			}
			assert.Equal(t, want, order(roots))
		})
	}
}

func TestBuildNestedInstructions_PreOrderProperty(t *testing.T) {
	inputs := [][]uint32{
		{1},
		{1, 1, 1},
		{1, 2, 2, 2},
		{1, 2, 3, 4, 5, 4, 3, 2, 1},
		{1, 2, 3, 1, 2, 3, 3, 2},
	}
	for _, heights := range inputs {
		in := mk(heights...)
		roots := BuildNestedInstructions(in)
		require.Equal(t, len(in), roots.Len())
		for i, ix := range roots.Flatten() {
			assert.Equal(t, byte(i), ix.Instruction.Data[0])
			assert.Equal(t, heights[i], ix.Metadata.StackHeight)
			assert.Len(t, ix.Metadata.AbsolutePath, int(heights[i]))
		}
	}
}

func TestBuildNestedInstructions_WidePaths(t *testing.T) {
	heights := make([]uint32, 301)
	for i := range heights {
		heights[i] = 2
	}
	heights[0] = 1
	roots := BuildNestedInstructions(mk(heights...))

	require.Len(t, roots, 1)
	require.Len(t, roots[0].Inner, 300)
	assert.Equal(t, []uint16{0, 0}, roots[0].Inner[0].Metadata.AbsolutePath)
	assert.Equal(t, []uint16{0, 256}, roots[0].Inner[256].Metadata.AbsolutePath)

	seen := make(map[[2]uint16]bool)
	for _, ix := range roots[0].Inner {
		p := ix.Metadata.AbsolutePath
		k := [2]uint16{p[0], p[1]}
		assert.False(t, seen[k], "duplicate path %v", p)
		seen[k] = true
	}

	// 高度为 0 的指令各自成为根
	roots = BuildNestedInstructions(mk(make([]uint32, 300)...))
	require.Len(t, roots, 300)
	assert.Equal(t, []uint16{299}, roots[299].Metadata.AbsolutePath)
}

func TestExtractInstructionsWithMetadata(t *testing.T) {
	keys := make([]types.Pubkey, 4)
	for i := range keys {
		keys[i][0] = byte(i + 1)
	}
	three := uint32(3)

	update := &core.TransactionUpdate{
		Transaction: &core.Transaction{
			Message: core.Message{
				Header:      core.MessageHeader{NumRequiredSignatures: 1},
				AccountKeys: keys,
				Instructions: []core.CompiledInstruction{
					{ProgramIDIndex: 2, Accounts: []byte{0, 1}, Data: []byte{0xa0}},
					{ProgramIDIndex: 3, Accounts: []byte{1}, Data: []byte{0xb0}},
				},
			},
		},
		Meta: &core.TransactionStatusMeta{
			InnerInstructions: []core.InnerInstructions{
				{Index: 0, Instructions: []core.InnerInstruction{
					{ProgramIDIndex: 3, Accounts: []byte{1}, Data: []byte{0xa1}},
					{ProgramIDIndex: 2, Accounts: []byte{0}, Data: []byte{0xa2}, StackHeight: &three},
				}},
			},
		},
	}
	txMeta, err := core.NewTransactionMetadata(update)
	require.NoError(t, err)

	list, err := ExtractInstructionsWithMetadata(txMeta)
	require.NoError(t, err)
	require.Len(t, list, 4)

	assert.Equal(t, []byte{0xa0}, list[0].Instruction.Data)
	assert.Equal(t, uint32(1), list[0].Metadata.StackHeight)
	assert.Equal(t, keys[2], list[0].Instruction.ProgramID)
	assert.True(t, list[0].Instruction.Accounts[0].IsSigner)
	assert.False(t, list[0].Instruction.Accounts[1].IsSigner)

	// 缺省 stack height 的 inner 指令按 2 处理
	assert.Equal(t, uint32(2), list[1].Metadata.StackHeight)
	assert.Equal(t, uint32(3), list[2].Metadata.StackHeight)
	assert.Equal(t, uint32(0), list[2].Metadata.Index)

	assert.Equal(t, []byte{0xb0}, list[3].Instruction.Data)
	assert.Equal(t, uint32(1), list[3].Metadata.Index)
	assert.Same(t, txMeta, list[3].Metadata.TransactionMetadata)

	roots := BuildNestedInstructions(list)
	require.Len(t, roots, 2)
	require.Len(t, roots[0].Inner, 1)
	require.Len(t, roots[0].Inner[0].Inner, 1)
}

func TestExtractInstructionsWithMetadata_BadIndex(t *testing.T) {
	update := &core.TransactionUpdate{
		Transaction: &core.Transaction{
			Message: core.Message{
				AccountKeys:  []types.Pubkey{{1}},
				Instructions: []core.CompiledInstruction{{ProgramIDIndex: 0, Accounts: []byte{5}}},
			},
		},
	}
	txMeta, err := core.NewTransactionMetadata(update)
	require.NoError(t, err)

	_, err = NestedFromTransaction(txMeta)
	assert.ErrorContains(t, err, "out of range")
}
