package spltoken

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

func metas(n int) []core.AccountMeta {
	out := make([]core.AccountMeta, n)
	for i := range out {
		out[i].Pubkey = types.Pubkey{byte(i + 1)}
	}
	return out
}

func amountData(tag byte, amount uint64, extra ...byte) []byte {
	data := make([]byte, 9, 9+len(extra))
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:], amount)
	return append(data, extra...)
}

func TestDecodeInstruction(t *testing.T) {
	d := InstructionDecoder{}
	owner := types.Pubkey{0xaa}

	tests := []struct {
		name     string
		data     []byte
		accounts int
		want     Instruction
	}{
		{"transfer", amountData(3, 500), 3,
			Instruction{Type: TypeTransfer, Amount: 500, Source: types.Pubkey{1}, Destination: types.Pubkey{2}, Authority: types.Pubkey{3}}},
		{"transfer checked", amountData(12, 7, 6), 4,
			Instruction{Type: TypeTransferChecked, Amount: 7, Decimals: 6, Source: types.Pubkey{1}, Mint: types.Pubkey{2}, Destination: types.Pubkey{3}, Authority: types.Pubkey{4}}},
		{"mint to checked", amountData(14, 1000, 9), 3,
			Instruction{Type: TypeMintToChecked, Amount: 1000, Decimals: 9, Mint: types.Pubkey{1}, Destination: types.Pubkey{2}, Authority: types.Pubkey{3}}},
		{"burn", amountData(8, 42), 3,
			Instruction{Type: TypeBurn, Amount: 42, Source: types.Pubkey{1}, Mint: types.Pubkey{2}, Authority: types.Pubkey{3}}},
		{"initialize account3", append([]byte{18}, owner[:]...), 2,
			Instruction{Type: TypeInitializeAccount, Destination: types.Pubkey{1}, Mint: types.Pubkey{2}, Owner: owner}},
		{"initialize mint2", append([]byte{20, 6}, owner[:]...), 1,
			Instruction{Type: TypeInitializeMint, Decimals: 6, Mint: types.Pubkey{1}, Authority: owner}},
		{"close account", []byte{9}, 3,
			Instruction{Type: TypeCloseAccount, Source: types.Pubkey{1}, Destination: types.Pubkey{2}, Authority: types.Pubkey{3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, program := range []types.Pubkey{TokenProgram, Token2022Program} {
				got := d.DecodeInstruction(&core.Instruction{ProgramID: program, Data: tt.data, Accounts: metas(tt.accounts)})
				require.NotNil(t, got)
				assert.Equal(t, tt.want, got.Data)
				assert.Equal(t, program, got.ProgramID)
			}
		})
	}
}

func TestDecodeInstruction_NotApplicable(t *testing.T) {
	d := InstructionDecoder{}
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: types.Pubkey{9}, Data: amountData(3, 1), Accounts: metas(3)}))
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: TokenProgram, Data: []byte{3, 1}, Accounts: metas(3)}))
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: TokenProgram, Data: amountData(3, 1), Accounts: metas(2)}))
	// approve 不在支持范围内
	assert.Nil(t, d.DecodeInstruction(&core.Instruction{ProgramID: TokenProgram, Data: amountData(4, 1), Accounts: metas(3)}))
}

func TestDecodeAccount_TokenAccount(t *testing.T) {
	data := make([]byte, TokenAccountSize)
	mint, owner := types.Pubkey{1}, types.Pubkey{2}
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:72], 12345)
	data[108] = byte(StateInitialized)
	binary.LittleEndian.PutUint32(data[109:113], 1)
	binary.LittleEndian.PutUint64(data[113:121], 2039280)

	got := AccountDecoder{}.DecodeAccount(&core.Account{Owner: TokenProgram, Lamports: 2039280, Data: data})
	require.NotNil(t, got)
	require.Equal(t, TypeTokenAccount, got.Data.Type)
	ta := got.Data.TokenAccount
	assert.Equal(t, mint, ta.Mint)
	assert.Equal(t, owner, ta.Owner)
	assert.Equal(t, uint64(12345), ta.Amount)
	assert.Nil(t, ta.Delegate)
	require.NotNil(t, ta.IsNative)
	assert.Equal(t, uint64(2039280), *ta.IsNative)
	assert.Equal(t, uint64(2039280), got.Lamports)

	// 未初始化
	data[108] = 0
	assert.Nil(t, AccountDecoder{}.DecodeAccount(&core.Account{Owner: TokenProgram, Data: data}))
}

func TestDecodeAccount_Mint(t *testing.T) {
	data := make([]byte, MintSize)
	authority := types.Pubkey{7}
	binary.LittleEndian.PutUint32(data[0:4], 1)
	copy(data[4:36], authority[:])
	binary.LittleEndian.PutUint64(data[36:44], 1_000_000)
	data[44] = 6
	data[45] = 1

	got := AccountDecoder{}.DecodeAccount(&core.Account{Owner: Token2022Program, Data: data})
	require.NotNil(t, got)
	require.Equal(t, TypeMint, got.Data.Type)
	assert.Equal(t, authority, *got.Data.Mint.MintAuthority)
	assert.Nil(t, got.Data.Mint.FreezeAuthority)
	assert.Equal(t, uint64(1_000_000), got.Data.Mint.Supply)
	assert.Equal(t, uint8(6), got.Data.Mint.Decimals)

	assert.Nil(t, AccountDecoder{}.DecodeAccount(&core.Account{Owner: types.Pubkey{3}, Data: data}))
	assert.Nil(t, AccountDecoder{}.DecodeAccount(&core.Account{Owner: TokenProgram, Data: data[:50]}))
}
