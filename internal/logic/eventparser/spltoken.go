package eventparser

import (
	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/decoder/spltoken"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/mq"
	"sol-ingest/internal/types"
)

// TokenEvent 把 SPL Token 的 transfer / mint_to / burn 指令转成事件，其余指令忽略。
// 失败交易不产生事件。分区 Key 为 mint，transfer 未带 mint 时从余额快照反查。
func TokenEvent(input pipe.InstructionInput[spltoken.Instruction]) (*mq.Event, error) {
	tx := input.Metadata.TransactionMetadata
	if tx == nil || !tx.Meta.Succeeded() {
		return nil, nil
	}
	ix := input.Decoded.Data

	var eventType uint32
	switch ix.Type {
	case spltoken.TypeTransfer, spltoken.TypeTransferChecked:
		eventType = mq.EventTypeTokenTransfer
	case spltoken.TypeMintTo, spltoken.TypeMintToChecked:
		eventType = mq.EventTypeTokenMint
	case spltoken.TypeBurn, spltoken.TypeBurnChecked:
		eventType = mq.EventTypeTokenBurn
	default:
		return nil, nil
	}

	mint := ix.Mint
	for _, account := range []types.Pubkey{ix.Source, ix.Destination} {
		if !mint.IsZero() {
			break
		}
		if b, _, ok := findTokenBalance(tx, account); ok {
			mint = b.Mint
		}
	}

	f := newFields(tx).
		str("instruction", ix.Type).
		pubkey("token", mint).
		pubkey("src_account", ix.Source).
		pubkey("dest_account", ix.Destination).
		pubkey("authority", ix.Authority).
		amount("amount", ix.Amount)

	switch ix.Type {
	case spltoken.TypeTransferChecked, spltoken.TypeMintToChecked, spltoken.TypeBurnChecked:
		f.number("decimals", float64(ix.Decimals))
	}
	addBalance(f, "src", tx, ix.Source)
	addBalance(f, "dest", tx, ix.Destination)

	return &mq.Event{
		Type:    eventType,
		Key:     mint[:],
		Payload: f.build(),
	}, nil
}

// addBalance 写入账户所有者与交易后余额（快照中存在时）
func addBalance(f fields, prefix string, tx *core.TransactionMetadata, account types.Pubkey) {
	b, post, ok := findTokenBalance(tx, account)
	if !ok {
		return
	}
	f.pubkey(prefix+"_wallet", b.Owner)
	if post {
		f.amount(prefix+"_token_balance", b.Amount)
	}
}
