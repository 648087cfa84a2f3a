package core

import (
	"errors"

	"sol-ingest/internal/types"
)

// MessageHeader 交易消息头，决定 accountKeys 中每个账户的签名/可写属性
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction 主指令，账户与 program 均以 accountKeys 下标表示
type CompiledInstruction struct {
	ProgramIDIndex uint32
	Accounts       []byte
	Data           []byte
}

// InnerInstruction CPI 指令；StackHeight 为空表示数据源未提供
type InnerInstruction struct {
	ProgramIDIndex uint32
	Accounts       []byte
	Data           []byte
	StackHeight    *uint32
}

// InnerInstructions 某条主指令（Index）执行期间产生的全部 CPI 指令，按执行顺序排列
type InnerInstructions struct {
	Index        uint32
	Instructions []InnerInstruction
}

// Message 交易消息体
type Message struct {
	Header          MessageHeader
	AccountKeys     []types.Pubkey // 静态账户（不含 Address Lookup Table 加载的账户）
	RecentBlockhash types.Hash
	Instructions    []CompiledInstruction
	Versioned       bool
}

// Transaction 已签名交易
type Transaction struct {
	Signatures []types.Signature
	Message    Message
}

// LoadedAddresses 通过 Address Lookup Table 加载的账户
type LoadedAddresses struct {
	Writable []types.Pubkey
	Readonly []types.Pubkey
}

// TransactionTokenBalance 交易前/后的 SPL Token 余额快照
type TransactionTokenBalance struct {
	AccountIndex uint32
	Mint         types.Pubkey
	Owner        types.Pubkey
	ProgramID    types.Pubkey
	Amount       uint64
	Decimals     uint8
}

// TransactionError 执行失败原因（原始编码，不做解析）
type TransactionError struct {
	Raw []byte
}

// TransactionStatusMeta 交易执行结果
type TransactionStatusMeta struct {
	Err                  *TransactionError
	Fee                  uint64
	PreBalances          []uint64
	PostBalances         []uint64
	InnerInstructions    []InnerInstructions
	LogMessages          []string
	PreTokenBalances     []TransactionTokenBalance
	PostTokenBalances    []TransactionTokenBalance
	LoadedAddresses      LoadedAddresses
	ComputeUnitsConsumed *uint64
}

// Succeeded 交易是否执行成功
func (m *TransactionStatusMeta) Succeeded() bool {
	return m == nil || m.Err == nil
}

// TransactionMetadata 交易级上下文，所有指令共享同一个实例
type TransactionMetadata struct {
	Slot      uint64
	Signature types.Signature
	FeePayer  types.Pubkey
	Meta      *TransactionStatusMeta
	Message   *Message
	Index     *uint64
	BlockTime *int64
	BlockHash *types.Hash

	accountKeys []types.Pubkey
}

var (
	ErrMissingTransaction = errors.New("transaction update has no transaction")
	ErrMissingAccountKeys = errors.New("transaction message has no account keys")
)

// NewTransactionMetadata 从 TransactionUpdate 提取交易元数据。
// accountKeys 为空时无法确定 fee payer，返回错误。
func NewTransactionMetadata(update *TransactionUpdate) (*TransactionMetadata, error) {
	if update.Transaction == nil {
		return nil, ErrMissingTransaction
	}
	msg := &update.Transaction.Message
	if len(msg.AccountKeys) == 0 {
		return nil, ErrMissingAccountKeys
	}

	meta := update.Meta
	if meta == nil {
		meta = &TransactionStatusMeta{}
	}

	// 完整账户列表：静态账户 + ALT writable + ALT readonly，顺序与 accountIndex 一致
	total := len(msg.AccountKeys) + len(meta.LoadedAddresses.Writable) + len(meta.LoadedAddresses.Readonly)
	keys := make([]types.Pubkey, 0, total)
	keys = append(keys, msg.AccountKeys...)
	keys = append(keys, meta.LoadedAddresses.Writable...)
	keys = append(keys, meta.LoadedAddresses.Readonly...)

	return &TransactionMetadata{
		Slot:        update.Slot,
		Signature:   update.Signature,
		FeePayer:    msg.AccountKeys[0],
		Meta:        meta,
		Message:     msg,
		Index:       update.Index,
		BlockTime:   update.BlockTime,
		BlockHash:   update.BlockHash,
		accountKeys: keys,
	}, nil
}

// AccountKeys 返回完整账户列表（含 Address Lookup Table 加载的账户）
func (m *TransactionMetadata) AccountKeys() []types.Pubkey {
	return m.accountKeys
}

// IsSigner 判断 accountKeys[index] 是否为签名账户
func (m *TransactionMetadata) IsSigner(index int) bool {
	return index < int(m.Message.Header.NumRequiredSignatures)
}

// IsWritable 按 Solana 账户排列规则判断 accountKeys[index] 是否可写：
//   - 签名账户：前 (签名数 - 只读签名数) 个可写；
//   - 非签名静态账户：前 (静态数 - 签名数 - 只读非签名数) 个可写；
//   - ALT 账户：writable 段可写，readonly 段只读。
func (m *TransactionMetadata) IsWritable(index int) bool {
	h := m.Message.Header
	numStatic := len(m.Message.AccountKeys)
	numSigners := int(h.NumRequiredSignatures)

	switch {
	case index < numSigners:
		return index < numSigners-int(h.NumReadonlySignedAccounts)
	case index < numStatic:
		return index < numStatic-int(h.NumReadonlyUnsignedAccounts)
	case index < numStatic+len(m.Meta.LoadedAddresses.Writable):
		return true
	default:
		return false
	}
}
