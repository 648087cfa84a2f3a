package computebudget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

func TestDecodeInstruction(t *testing.T) {
	d := Decoder{}

	tests := []struct {
		name string
		data []byte
		want Instruction
	}{
		{"limit", []byte{2, 0x40, 0x0d, 0x03, 0x00}, Instruction{TypeSetComputeUnitLimit, 200_000}},
		{"price", []byte{3, 0xe8, 0x03, 0, 0, 0, 0, 0, 0}, Instruction{TypeSetComputeUnitPrice, 1000}},
		{"heap", []byte{1, 0, 0, 4, 0}, Instruction{TypeRequestHeapFrame, 256 * 1024}},
		{"data size", []byte{4, 0, 0, 1, 0}, Instruction{TypeSetLoadedAccountsDataSizeLimit, 65536}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.DecodeInstruction(&core.Instruction{ProgramID: ProgramID, Data: tt.data})
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Data)
			assert.Equal(t, tt.want.Type, got.Data.InstructionType())
		})
	}
}

func TestDecodeInstruction_NotApplicable(t *testing.T) {
	d := Decoder{}
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: types.Pubkey{1}, Data: []byte{2, 1, 0, 0, 0}}))
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: ProgramID}))
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: ProgramID, Data: []byte{2, 1}}))
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: ProgramID, Data: []byte{0, 1, 2, 3, 4}}))
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: ProgramID, Data: []byte{9}}))
}
