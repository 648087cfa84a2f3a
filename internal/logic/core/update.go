package core

import "sol-ingest/internal/types"

// UpdateKind 标识 Update 的类别，数据源在构建阶段声明自己能产出哪些类别
type UpdateKind int

const (
	UpdateKindAccount UpdateKind = iota + 1
	UpdateKindTransaction
	UpdateKindAccountDeletion
	UpdateKindBlockDetails
)

var updateKindNames = []string{
	"Unknown",         // 0 (保留)
	"AccountUpdate",   // 1
	"Transaction",     // 2
	"AccountDeletion", // 3
	"BlockDetails",    // 4
}

func (k UpdateKind) String() string {
	if k >= UpdateKindAccount && int(k) < len(updateKindNames) {
		return updateKindNames[k]
	}
	return updateKindNames[0]
}

// Update 是数据源推入队列的消息，具体类型为下面四种之一。
// 构造完成后不可修改：入队后由 pipeline 独占，分发时以只读方式借给各个 pipe。
// 未导出的 isUpdate 限定只有本包的四种类型实现该接口。
type Update interface {
	Kind() UpdateKind
	GetSlot() uint64
	isUpdate()
}

// AccountUpdate 账户快照
type AccountUpdate struct {
	Pubkey               types.Pubkey
	Account              Account
	Slot                 uint64
	TransactionSignature *types.Signature // 触发该变更的交易（部分数据源不提供）
}

func (u *AccountUpdate) Kind() UpdateKind { return UpdateKindAccount }
func (u *AccountUpdate) GetSlot() uint64  { return u.Slot }
func (*AccountUpdate) isUpdate()          {}

// TransactionUpdate 一笔已执行的交易及其执行结果
type TransactionUpdate struct {
	Signature   types.Signature
	Transaction *Transaction
	Meta        *TransactionStatusMeta
	IsVote      bool
	Slot        uint64
	Index       *uint64 // 交易在区块中的序号
	BlockTime   *int64
	BlockHash   *types.Hash
}

func (u *TransactionUpdate) Kind() UpdateKind { return UpdateKindTransaction }
func (u *TransactionUpdate) GetSlot() uint64  { return u.Slot }
func (*TransactionUpdate) isUpdate()          {}

// AccountDeletion 账户被关闭（lamports 归零）
type AccountDeletion struct {
	Pubkey               types.Pubkey
	Slot                 uint64
	TransactionSignature *types.Signature
}

func (u *AccountDeletion) Kind() UpdateKind { return UpdateKindAccountDeletion }
func (u *AccountDeletion) GetSlot() uint64  { return u.Slot }
func (*AccountDeletion) isUpdate()          {}

// BlockDetails 区块元信息
type BlockDetails struct {
	Slot                uint64
	BlockHash           *types.Hash
	PreviousBlockHash   *types.Hash
	Rewards             []Reward
	NumRewardPartitions *uint64
	BlockTime           *int64
	BlockHeight         *uint64
}

func (u *BlockDetails) Kind() UpdateKind { return UpdateKindBlockDetails }
func (u *BlockDetails) GetSlot() uint64  { return u.Slot }
func (*BlockDetails) isUpdate()          {}

// Reward 区块奖励
type Reward struct {
	Pubkey      types.Pubkey
	Lamports    int64
	PostBalance uint64
	RewardType  string
	Commission  *uint8
}
