package eventparser

import (
	"strconv"

	"google.golang.org/protobuf/types/known/structpb"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/decoder/spltoken"
	"sol-ingest/internal/logic/pipe"
	"sol-ingest/internal/mq"
)

// TokenBalanceEvent token account 更新转为余额事件；mint 账户更新忽略
func TokenBalanceEvent(input pipe.AccountInput[spltoken.Account]) (*mq.Event, error) {
	ta := input.Decoded.Data.TokenAccount
	if ta == nil {
		return nil, nil
	}

	f := fields{
		"slot": structpb.NewStringValue(strconv.FormatUint(input.Metadata.Slot, 10)),
	}
	f.pubkey("account", input.Metadata.Pubkey).
		pubkey("token", ta.Mint).
		pubkey("owner", ta.Owner).
		pubkey("program", input.Decoded.Owner).
		amount("balance", ta.Amount).
		boolean("frozen", ta.State == spltoken.StateFrozen)
	if sig := input.Metadata.TransactionSignature; sig != nil {
		f.str("tx_hash", sig.String())
	}

	return &mq.Event{
		Type:    mq.EventTypeTokenBalance,
		Key:     ta.Mint[:],
		Payload: f.build(),
	}, nil
}

// AccountClosedEvent 账户关闭事件，下游据此清理余额
func AccountClosedEvent(deletion *core.AccountDeletion) *mq.Event {
	f := fields{
		"slot": structpb.NewStringValue(strconv.FormatUint(deletion.Slot, 10)),
	}
	f.pubkey("account", deletion.Pubkey)
	if sig := deletion.TransactionSignature; sig != nil {
		f.str("tx_hash", sig.String())
	}

	key := deletion.Pubkey
	return &mq.Event{
		Type:    mq.EventTypeAccountClosed,
		Key:     key[:],
		Payload: f.build(),
	}
}
