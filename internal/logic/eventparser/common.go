package eventparser

import (
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

// fields 事件载荷构造器。金额一律以十进制字符串写入，避免 structpb 数值转 float64 丢精度。
type fields map[string]*structpb.Value

func newFields(tx *core.TransactionMetadata) fields {
	f := fields{
		"slot":     structpb.NewStringValue(strconv.FormatUint(tx.Slot, 10)),
		"tx_hash":  structpb.NewStringValue(tx.Signature.String()),
		"tx_from":  structpb.NewStringValue(tx.FeePayer.String()),
		"tx_index": structpb.NewNumberValue(float64(txIndex(tx))),
	}
	if tx.BlockTime != nil {
		f["block_time"] = structpb.NewNumberValue(float64(*tx.BlockTime))
	}
	return f
}

func (f fields) pubkey(key string, v types.Pubkey) fields {
	if !v.IsZero() {
		f[key] = structpb.NewStringValue(v.String())
	}
	return f
}

func (f fields) amount(key string, v uint64) fields {
	f[key] = structpb.NewStringValue(strconv.FormatUint(v, 10))
	return f
}

func (f fields) number(key string, v float64) fields {
	f[key] = structpb.NewNumberValue(v)
	return f
}

func (f fields) boolean(key string, v bool) fields {
	f[key] = structpb.NewBoolValue(v)
	return f
}

func (f fields) str(key, v string) fields {
	f[key] = structpb.NewStringValue(v)
	return f
}

func (f fields) build() *structpb.Struct {
	return &structpb.Struct{Fields: f}
}

func txIndex(tx *core.TransactionMetadata) uint64 {
	if tx == nil || tx.Index == nil {
		return 0
	}
	return *tx.Index
}

// findTokenBalance 在交易后（其次交易前）的余额快照中查找 token account
func findTokenBalance(tx *core.TransactionMetadata, account types.Pubkey) (core.TransactionTokenBalance, bool, bool) {
	if tx.Meta == nil || account.IsZero() {
		return core.TransactionTokenBalance{}, false, false
	}
	keys := tx.AccountKeys()
	for i, list := range [][]core.TransactionTokenBalance{tx.Meta.PostTokenBalances, tx.Meta.PreTokenBalances} {
		for _, b := range list {
			if int(b.AccountIndex) < len(keys) && keys[b.AccountIndex] == account {
				return b, i == 0, true
			}
		}
	}
	return core.TransactionTokenBalance{}, false, false
}
