// Package pumpfun 解码 Pump.fun bonding curve 程序的指令与 CPI 事件
package pumpfun

import (
	"encoding/binary"

	"github.com/near/borsh-go"

	"sol-ingest/internal/consts"
	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

var ProgramID = consts.PumpFunProgram

// 8 字节 anchor discriminator（大端读取）
const (
	discCreate  uint64 = 0x181ec828051c0777
	discBuy     uint64 = 0x66063d1201daebea
	discSell    uint64 = 0x33e685a4017f83ad
	discMigrate uint64 = 0x9beae792ec9ea21e

	// discEventCPI anchor emit_cpi! 指令前缀，其后 8 字节为事件 discriminator
	discEventCPI    uint64 = 0xe445a52e51cb9a1d
	discTradeEvent  uint64 = 0xbddb7fd34ee661ee
	discCreateEvent uint64 = 0x1b72a94ddeeb6376
)

// 指令类型标签
const (
	TypeCreate      = "create"
	TypeBuy         = "buy"
	TypeSell        = "sell"
	TypeMigrate     = "migrate"
	TypeTradeEvent  = "trade_event"
	TypeCreateEvent = "create_event"
)

type CreateArgs struct {
	Name   string
	Symbol string
	Uri    string
}

// TradeArgs buy 时 SolLimit 为最大花费，sell 时为最少收到
type TradeArgs struct {
	Amount   uint64
	SolLimit uint64
}

// TradeEvent 字段顺序即 borsh 布局，Sign 为事件 discriminator
type TradeEvent struct {
	Sign                 uint64
	Mint                 types.Pubkey
	SolAmount            uint64
	TokenAmount          uint64
	IsBuy                bool
	User                 types.Pubkey
	Timestamp            uint64
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	CurrentSolReserves   uint64
	CurrentTokenReserves uint64
}

type CreateEvent struct {
	Sign                 uint64
	Name                 string
	Symbol               string
	Uri                  string
	Mint                 types.Pubkey
	BondingCurve         types.Pubkey
	User                 types.Pubkey
	Creator              types.Pubkey
	Timestamp            uint64
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	TokenTotalSupply     uint64
}

// Instruction 解码结果，按 Type 只有一个载荷字段非空
type Instruction struct {
	Type        string
	Create      *CreateArgs
	Trade       *TradeArgs
	TradeEvent  *TradeEvent
	CreateEvent *CreateEvent
}

func (i Instruction) InstructionType() string { return i.Type }

// 账户位置
const (
	TradeAccountMint         = 2
	TradeAccountBondingCurve = 3
	TradeAccountUser         = 6
	CreateAccountMint        = 0
)

type Decoder struct{}

var _ core.InstructionDecoder[Instruction] = Decoder{}

func (Decoder) DecodeInstruction(ix *core.Instruction) *core.DecodedInstruction[Instruction] {
	if ix.ProgramID != ProgramID || len(ix.Data) < 8 {
		return nil
	}
	out, ok := decode(ix.Data)
	if !ok {
		return nil
	}
	return &core.DecodedInstruction[Instruction]{
		ProgramID: ix.ProgramID,
		Data:      out,
		Accounts:  ix.Accounts,
	}
}

func decode(data []byte) (out Instruction, ok bool) {
	// borsh 对截断数据可能 panic
	defer func() {
		if r := recover(); r != nil {
			out, ok = Instruction{}, false
		}
	}()

	switch binary.BigEndian.Uint64(data[:8]) {
	case discCreate:
		var args CreateArgs
		if err := borsh.Deserialize(&args, data[8:]); err != nil {
			return Instruction{}, false
		}
		return Instruction{Type: TypeCreate, Create: &args}, true

	case discBuy, discSell:
		if len(data) < 24 {
			return Instruction{}, false
		}
		var args TradeArgs
		if err := borsh.Deserialize(&args, data[8:24]); err != nil {
			return Instruction{}, false
		}
		typ := TypeBuy
		if binary.BigEndian.Uint64(data[:8]) == discSell {
			typ = TypeSell
		}
		return Instruction{Type: typ, Trade: &args}, true

	case discMigrate:
		return Instruction{Type: TypeMigrate}, true

	case discEventCPI:
		return decodeEvent(data[8:])

	default:
		return Instruction{}, false
	}
}

func decodeEvent(data []byte) (Instruction, bool) {
	if len(data) < 8 {
		return Instruction{}, false
	}
	switch binary.BigEndian.Uint64(data[:8]) {
	case discTradeEvent:
		var event TradeEvent
		if err := borsh.Deserialize(&event, data); err != nil {
			return Instruction{}, false
		}
		return Instruction{Type: TypeTradeEvent, TradeEvent: &event}, true
	case discCreateEvent:
		var event CreateEvent
		if err := borsh.Deserialize(&event, data); err != nil {
			return Instruction{}, false
		}
		return Instruction{Type: TypeCreateEvent, CreateEvent: &event}, true
	default:
		return Instruction{}, false
	}
}
