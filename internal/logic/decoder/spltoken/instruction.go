// Package spltoken 解码 SPL Token / Token-2022 指令与账户
package spltoken

import (
	"encoding/binary"

	sdktoken "github.com/blocto/solana-go-sdk/program/token"

	"sol-ingest/internal/consts"
	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

var (
	TokenProgram     = consts.TokenProgram
	Token2022Program = consts.TokenProgram2022
)

func IsTokenProgram(id types.Pubkey) bool {
	return id == TokenProgram || id == Token2022Program
}

// 指令类型标签
const (
	TypeInitializeMint    = "initialize_mint"
	TypeInitializeAccount = "initialize_account"
	TypeTransfer          = "transfer"
	TypeTransferChecked   = "transfer_checked"
	TypeMintTo            = "mint_to"
	TypeMintToChecked     = "mint_to_checked"
	TypeBurn              = "burn"
	TypeBurnChecked       = "burn_checked"
	TypeCloseAccount      = "close_account"
)

// Instruction 解码结果。账户含义随类型不同：
//   - transfer: Source, Destination, Authority；transfer_checked 额外有 Mint；
//   - mint_to: Mint, Destination, Authority；burn: Source, Mint, Authority；
//   - initialize_account: Account(Destination), Mint, Owner；initialize_mint: Mint, Authority；
//   - close_account: Source(被关闭账户), Destination(lamports 接收者), Authority。
type Instruction struct {
	Type        string
	Amount      uint64
	Decimals    uint8 // 仅 *_checked 与 initialize_mint
	Source      types.Pubkey
	Destination types.Pubkey
	Mint        types.Pubkey
	Authority   types.Pubkey
	Owner       types.Pubkey
}

func (i Instruction) InstructionType() string { return i.Type }

type InstructionDecoder struct{}

var _ core.InstructionDecoder[Instruction] = InstructionDecoder{}

func (InstructionDecoder) DecodeInstruction(ix *core.Instruction) *core.DecodedInstruction[Instruction] {
	if !IsTokenProgram(ix.ProgramID) || len(ix.Data) == 0 {
		return nil
	}
	out, ok := decode(ix.Data, ix.Accounts)
	if !ok {
		return nil
	}
	return &core.DecodedInstruction[Instruction]{
		ProgramID: ix.ProgramID,
		Data:      out,
		Accounts:  ix.Accounts,
	}
}

func decode(data []byte, accounts []core.AccountMeta) (Instruction, bool) {
	acc := func(i int) types.Pubkey { return accounts[i].Pubkey }

	switch data[0] {
	case byte(sdktoken.InstructionTransfer):
		if len(data) < 9 || len(accounts) < 3 {
			return Instruction{}, false
		}
		return Instruction{
			Type:        TypeTransfer,
			Amount:      binary.LittleEndian.Uint64(data[1:9]),
			Source:      acc(0),
			Destination: acc(1),
			Authority:   acc(2),
		}, true

	case byte(sdktoken.InstructionTransferChecked):
		if len(data) < 10 || len(accounts) < 4 {
			return Instruction{}, false
		}
		return Instruction{
			Type:        TypeTransferChecked,
			Amount:      binary.LittleEndian.Uint64(data[1:9]),
			Decimals:    data[9],
			Source:      acc(0),
			Mint:        acc(1),
			Destination: acc(2),
			Authority:   acc(3),
		}, true

	case byte(sdktoken.InstructionMintTo), byte(sdktoken.InstructionMintToChecked):
		checked := data[0] == byte(sdktoken.InstructionMintToChecked)
		if len(data) < 9 || (checked && len(data) < 10) || len(accounts) < 3 {
			return Instruction{}, false
		}
		out := Instruction{
			Type:        TypeMintTo,
			Amount:      binary.LittleEndian.Uint64(data[1:9]),
			Mint:        acc(0),
			Destination: acc(1),
			Authority:   acc(2),
		}
		if checked {
			out.Type, out.Decimals = TypeMintToChecked, data[9]
		}
		return out, true

	case byte(sdktoken.InstructionBurn), byte(sdktoken.InstructionBurnChecked):
		checked := data[0] == byte(sdktoken.InstructionBurnChecked)
		if len(data) < 9 || (checked && len(data) < 10) || len(accounts) < 3 {
			return Instruction{}, false
		}
		out := Instruction{
			Type:      TypeBurn,
			Amount:    binary.LittleEndian.Uint64(data[1:9]),
			Source:    acc(0),
			Mint:      acc(1),
			Authority: acc(2),
		}
		if checked {
			out.Type, out.Decimals = TypeBurnChecked, data[9]
		}
		return out, true

	case byte(sdktoken.InstructionInitializeAccount):
		if len(accounts) < 3 {
			return Instruction{}, false
		}
		return Instruction{Type: TypeInitializeAccount, Destination: acc(0), Mint: acc(1), Owner: acc(2)}, true

	case byte(sdktoken.InstructionInitializeAccount2), byte(sdktoken.InstructionInitializeAccount3):
		// owner 放在指令数据中
		if len(data) < 33 || len(accounts) < 2 {
			return Instruction{}, false
		}
		var owner types.Pubkey
		copy(owner[:], data[1:33])
		return Instruction{Type: TypeInitializeAccount, Destination: acc(0), Mint: acc(1), Owner: owner}, true

	case byte(sdktoken.InstructionInitializeMint), byte(sdktoken.InstructionInitializeMint2):
		if len(data) < 34 || len(accounts) < 1 {
			return Instruction{}, false
		}
		var authority types.Pubkey
		copy(authority[:], data[2:34])
		return Instruction{Type: TypeInitializeMint, Decimals: data[1], Mint: acc(0), Authority: authority}, true

	case byte(sdktoken.InstructionCloseAccount):
		if len(accounts) < 3 {
			return Instruction{}, false
		}
		return Instruction{Type: TypeCloseAccount, Source: acc(0), Destination: acc(1), Authority: acc(2)}, true

	default:
		return Instruction{}, false
	}
}
