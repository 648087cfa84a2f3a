package mq

import (
	"encoding/binary"
	"fmt"

	"google.golang.org/protobuf/proto"
)

// EncodeEvent 编码格式：前 4 字节为事件类型（uint32 小端），其后为 protobuf 序列化数据
func EncodeEvent(eventType uint32, msg proto.Message) ([]byte, error) {
	const extraBuffer = 32

	buf := make([]byte, 4, 4+proto.Size(msg)+extraBuffer)
	binary.LittleEndian.PutUint32(buf[:4], eventType)

	opts := proto.MarshalOptions{Deterministic: true}
	result, err := opts.MarshalAppend(buf, msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: marshal %T: %w", msg, err)
	}
	return result, nil
}

// DecodeEventType 读取消息前缀中的事件类型
func DecodeEventType(value []byte) (uint32, []byte, error) {
	if len(value) < 4 {
		return 0, nil, fmt.Errorf("event too short: %d bytes", len(value))
	}
	return binary.LittleEndian.Uint32(value[:4]), value[4:], nil
}

// PartitionHashBytes 从 key 中选取 4 字节构造 uint32 并模 mod，用于分区选择。
// 非加密哈希，key 一般为 pubkey 或签名；长度不足 28 字节时固定落到 0 号分区。
func PartitionHashBytes(b []byte, mod uint32) uint32 {
	if len(b) < 28 || mod == 0 {
		return 0
	}
	hash := uint32(b[7])<<24 | uint32(b[15])<<16 | uint32(b[19])<<8 | uint32(b[27])
	return hash % mod
}
