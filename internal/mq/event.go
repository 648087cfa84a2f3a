package mq

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// 事件类型，写在消息前 4 字节
const (
	EventTypeUnknown uint32 = iota
	EventTypeTrade
	EventTypeTokenCreate
	EventTypeTokenTransfer
	EventTypeTokenMint
	EventTypeTokenBurn
	EventTypeTokenBalance
	EventTypeAccountClosed
)

// Event 待发布的事件。Key 决定分区，同一 Key 的事件落在同一分区内保持顺序。
type Event struct {
	Type    uint32
	ID      uint64
	Key     []byte
	Payload *structpb.Struct
}

// 调用树最多 maxEventDepth 层，与 CPI 最大深度一致
const maxEventDepth = 6

// 每层 8 bit，加 1 后不能超过 0xFF
const maxPathIndex = 0xFE

// BuildEventID 由交易序号与指令绝对路径构造交易内唯一的事件 ID：
//
//	[16 bits txIndex][8 bits path[0]+1][8 bits path[1]+1]...[8 bits path[5]+1]
//
// 路径各层加 1 存储，0 表示该层不存在，因此同一交易中父子指令的 ID 不会冲突。
// 单层下标超过 maxPathIndex 时无法编码，返回错误。
func BuildEventID(txIndex uint64, path []uint16) (uint64, error) {
	if txIndex > 0xFFFF {
		return 0, fmt.Errorf("tx index %d out of range", txIndex)
	}
	if len(path) == 0 || len(path) > maxEventDepth {
		return 0, fmt.Errorf("invalid instruction path depth %d", len(path))
	}

	id := txIndex << 48
	for i, p := range path {
		if p > maxPathIndex {
			return 0, fmt.Errorf("instruction path index %d out of range", p)
		}
		id |= uint64(p+1) << (40 - 8*i)
	}
	return id, nil
}

// SplitEventID BuildEventID 的逆运算
func SplitEventID(id uint64) (txIndex uint64, path []uint16) {
	txIndex = id >> 48
	for i := 0; i < maxEventDepth; i++ {
		v := uint16(uint8(id >> (40 - 8*i)))
		if v == 0 {
			break
		}
		path = append(path, v-1)
	}
	return txIndex, path
}
