package core

import "sol-ingest/internal/types"

// Account 原始账户数据及其元数据
type Account struct {
	Lamports   uint64
	Owner      types.Pubkey
	Executable bool
	RentEpoch  uint64
	Data       []byte
}

// AccountMetadata 分发账户更新时附带的上下文
type AccountMetadata struct {
	Slot                 uint64
	Pubkey               types.Pubkey
	TransactionSignature *types.Signature
}
