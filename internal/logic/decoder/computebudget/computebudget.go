// Package computebudget 解码 ComputeBudget 程序指令，便于 schema 显式描述交易开头的预算设置
package computebudget

import (
	"encoding/binary"

	"sol-ingest/internal/consts"
	"sol-ingest/internal/logic/core"
)

var ProgramID = consts.ComputeBudgetProgram

const (
	tagRequestUnitsDeprecated         byte = 0
	tagRequestHeapFrame               byte = 1
	tagSetComputeUnitLimit            byte = 2
	tagSetComputeUnitPrice            byte = 3
	tagSetLoadedAccountsDataSizeLimit byte = 4
)

// 指令类型标签
const (
	TypeRequestHeapFrame               = "request_heap_frame"
	TypeSetComputeUnitLimit            = "set_compute_unit_limit"
	TypeSetComputeUnitPrice            = "set_compute_unit_price"
	TypeSetLoadedAccountsDataSizeLimit = "set_loaded_accounts_data_size_limit"
)

// Instruction 解码结果，Value 含义随类型变化：heap 字节数 / CU 上限 / micro-lamports 单价 / 账户数据上限
type Instruction struct {
	Type  string
	Value uint64
}

func (i Instruction) InstructionType() string { return i.Type }

type Decoder struct{}

var _ core.InstructionDecoder[Instruction] = Decoder{}

func (Decoder) DecodeInstruction(ix *core.Instruction) *core.DecodedInstruction[Instruction] {
	if ix.ProgramID != ProgramID || len(ix.Data) == 0 {
		return nil
	}

	data := ix.Data[1:]
	var out Instruction
	switch ix.Data[0] {
	case tagRequestHeapFrame:
		if len(data) < 4 {
			return nil
		}
		out = Instruction{Type: TypeRequestHeapFrame, Value: uint64(binary.LittleEndian.Uint32(data))}
	case tagSetComputeUnitLimit:
		if len(data) < 4 {
			return nil
		}
		out = Instruction{Type: TypeSetComputeUnitLimit, Value: uint64(binary.LittleEndian.Uint32(data))}
	case tagSetComputeUnitPrice:
		if len(data) < 8 {
			return nil
		}
		out = Instruction{Type: TypeSetComputeUnitPrice, Value: binary.LittleEndian.Uint64(data)}
	case tagSetLoadedAccountsDataSizeLimit:
		if len(data) < 4 {
			return nil
		}
		out = Instruction{Type: TypeSetLoadedAccountsDataSizeLimit, Value: uint64(binary.LittleEndian.Uint32(data))}
	default:
		// RequestUnits 已废弃
		return nil
	}

	return &core.DecodedInstruction[Instruction]{
		ProgramID: ix.ProgramID,
		Data:      out,
		Accounts:  ix.Accounts,
	}
}
