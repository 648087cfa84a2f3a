package eventparser

import (
	"slices"

	"sol-ingest/internal/logic/decoder/pumpfun"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/logic/schema"
	"sol-ingest/internal/mq"
	"sol-ingest/internal/types"
	"sol-ingest/pkg/logger"
)

// LabelCreate create schema 中 create 指令的 label
const LabelCreate = "create"

// maxCreatePrefix create 之前允许的主指令数（通常为 compute budget 设置与 ATA 创建）
const maxCreatePrefix = 3

// PumpfunCreateSchemas 返回发币交易的 schema：第 k 个 schema 要求第 k 条主指令为 create。
// 同一笔交易里不同位置的 create 由不同 schema 匹配，不会重复产生事件。
func PumpfunCreateSchemas() []*schema.TransactionSchema {
	out := make([]*schema.TransactionSchema, 0, maxCreatePrefix+1)
	for k := 0; k <= maxCreatePrefix; k++ {
		nodes := make([]schema.Node, 0, k+1)
		for i := 0; i < k; i++ {
			nodes = append(nodes, schema.Any())
		}
		nodes = append(nodes, schema.Ix(pumpfun.TypeCreate, LabelCreate))
		out = append(out, schema.MustNew(nodes...))
	}
	return out
}

// PumpfunCreateEvents 由 schema 匹配到的 create 指令构造发币事件。
// 名称等参数取自指令本身，bonding curve、创建者与总量取自 create 子树中的 CPI 事件。
func PumpfunCreateEvents(input pipe.TransactionInput[pumpfun.Instruction]) ([]*mq.Event, error) {
	tx := input.Metadata
	if tx == nil || !tx.Meta.Succeeded() {
		return nil, nil
	}
	create, ok := input.Match.Get(LabelCreate)
	if !ok || create.Instruction == nil || create.Instruction.Data.Create == nil {
		return nil, nil
	}
	args := create.Instruction.Data.Create

	var mint types.Pubkey
	if accounts := create.Instruction.Accounts; len(accounts) > pumpfun.CreateAccountMint {
		mint = accounts[pumpfun.CreateAccountMint].Pubkey
	}

	f := newFields(tx).
		str("dex", "pumpfun").
		str("name", args.Name).
		str("symbol", args.Symbol).
		str("uri", args.Uri)

	if e := createEventUnder(input.Instructions, create.Metadata.AbsolutePath); e != nil {
		if mint.IsZero() {
			mint = e.Mint
		}
		f.pubkey("bonding_curve", e.BondingCurve).
			pubkey("creator", e.Creator).
			amount("total_supply", e.TokenTotalSupply).
			number("timestamp", float64(e.Timestamp))
	}
	if mint.IsZero() {
		logger.Warnf("[Pumpfun] create 缺少 mint, tx=%s", tx.Signature)
		return nil, nil
	}
	f.pubkey("token", mint)

	id, err := mq.BuildEventID(txIndex(tx), create.Metadata.AbsolutePath)
	if err != nil {
		logger.Warnf("[Pumpfun] 事件 ID 构造失败, tx=%s: %v", tx.Signature, err)
		return nil, nil
	}
	return []*mq.Event{{
		Type:    mq.EventTypeTokenCreate,
		ID:      id,
		Key:     mint[:],
		Payload: f.build(),
	}}, nil
}

// createEventUnder 在 parent 子树内查找 create CPI 事件
func createEventUnder(list []pipe.DecodedWithMetadata[pumpfun.Instruction], parent []uint16) *pumpfun.CreateEvent {
	for _, ix := range list {
		path := ix.Metadata.AbsolutePath
		if len(path) <= len(parent) || !slices.Equal(path[:len(parent)], parent) {
			continue
		}
		if e := ix.Instruction.Data.CreateEvent; ix.Instruction.Data.Type == pumpfun.TypeCreateEvent && e != nil {
			return e
		}
	}
	return nil
}

// PumpfunTradeEvents 从 Pump.fun 交易中提取成交事件。
// 买卖可能经由聚合器 CPI 发起，位置不固定，因此不绑定 schema，以 CPI 事件为准
// （指令参数只含滑点上限），事件 ID 取事件所在节点的绝对路径。
func PumpfunTradeEvents(input pipe.TransactionInput[pumpfun.Instruction]) ([]*mq.Event, error) {
	tx := input.Metadata
	if tx == nil || !tx.Meta.Succeeded() {
		return nil, nil
	}

	var events []*mq.Event
	for _, ix := range input.Instructions {
		data := ix.Instruction.Data
		if data.Type != pumpfun.TypeTradeEvent || data.TradeEvent == nil {
			continue
		}
		e := data.TradeEvent

		id, err := mq.BuildEventID(txIndex(tx), ix.Metadata.AbsolutePath)
		if err != nil {
			logger.Warnf("[Pumpfun] 事件 ID 构造失败, tx=%s: %v", tx.Signature, err)
			continue
		}
		events = append(events, &mq.Event{
			Type: mq.EventTypeTrade,
			ID:   id,
			Key:  e.Mint[:],
			Payload: newFields(tx).
				str("dex", "pumpfun").
				pubkey("token", e.Mint).
				pubkey("user", e.User).
				boolean("is_buy", e.IsBuy).
				amount("sol_amount", e.SolAmount).
				amount("token_amount", e.TokenAmount).
				amount("virtual_sol_reserves", e.VirtualSolReserves).
				amount("virtual_token_reserves", e.VirtualTokenReserves).
				number("timestamp", float64(e.Timestamp)).
				build(),
		})
	}
	return events, nil
}
