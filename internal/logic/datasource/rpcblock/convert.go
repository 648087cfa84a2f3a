package rpcblock

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"sol-ingest/internal/consts"
	"sol-ingest/internal/logic/core"
	soltypes "sol-ingest/internal/types"
)

// convertBlock 将 getBlock 结果转换为交易更新（按区块内顺序）与区块元数据。
// 无法解析的单笔交易返回错误，由调用方决定跳过整个区块。
func convertBlock(slot uint64, block *client.Block) ([]*core.TransactionUpdate, *core.BlockDetails, error) {
	details := &core.BlockDetails{Slot: slot}

	var blockHash *soltypes.Hash
	if block.Blockhash != "" {
		h, err := soltypes.HashFromBase58(block.Blockhash)
		if err != nil {
			return nil, nil, fmt.Errorf("blockhash: %w", err)
		}
		blockHash = &h
		details.BlockHash = &h
	}
	if block.PreviousBlockhash != "" {
		h, err := soltypes.HashFromBase58(block.PreviousBlockhash)
		if err != nil {
			return nil, nil, fmt.Errorf("previous blockhash: %w", err)
		}
		details.PreviousBlockHash = &h
	}
	var blockTime *int64
	if block.BlockTime != nil {
		ts := block.BlockTime.Unix()
		blockTime = &ts
		details.BlockTime = &ts
	}
	if block.BlockHeight != nil && *block.BlockHeight >= 0 {
		height := uint64(*block.BlockHeight)
		details.BlockHeight = &height
	}

	txs := make([]*core.TransactionUpdate, 0, len(block.Transactions))
	for i, btx := range block.Transactions {
		tx, err := convertTransaction(slot, uint64(i), btx)
		if err != nil {
			return nil, nil, fmt.Errorf("tx %d in slot %d: %w", i, slot, err)
		}
		tx.BlockTime = blockTime
		tx.BlockHash = blockHash
		txs = append(txs, tx)
	}
	return txs, details, nil
}

func convertTransaction(slot, index uint64, btx client.BlockTransaction) (*core.TransactionUpdate, error) {
	msg := btx.Transaction.Message
	if len(btx.Transaction.Signatures) == 0 {
		return nil, fmt.Errorf("transaction has no signature")
	}

	signatures := make([]soltypes.Signature, 0, len(btx.Transaction.Signatures))
	for _, raw := range btx.Transaction.Signatures {
		s, err := soltypes.SignatureFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("signatures: %w", err)
		}
		signatures = append(signatures, s)
	}

	accountKeys := make([]soltypes.Pubkey, len(msg.Accounts))
	for i, k := range msg.Accounts {
		accountKeys[i] = soltypes.Pubkey(k)
	}

	var recentBlockhash soltypes.Hash
	if msg.RecentBlockHash != "" {
		h, err := soltypes.HashFromBase58(msg.RecentBlockHash)
		if err != nil {
			return nil, fmt.Errorf("recent blockhash: %w", err)
		}
		recentBlockhash = h
	}

	instructions := make([]core.CompiledInstruction, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		instructions[i] = core.CompiledInstruction{
			ProgramIDIndex: uint32(ix.ProgramIDIndex),
			Accounts:       toIndexBytes(ix.Accounts),
			Data:           ix.Data,
		}
	}

	meta, err := convertMeta(btx.Meta)
	if err != nil {
		return nil, err
	}

	return &core.TransactionUpdate{
		Signature: signatures[0],
		Transaction: &core.Transaction{
			Signatures: signatures,
			Message: core.Message{
				Header: core.MessageHeader{
					NumRequiredSignatures:       msg.Header.NumRequireSignatures,
					NumReadonlySignedAccounts:   msg.Header.NumReadonlySignedAccounts,
					NumReadonlyUnsignedAccounts: msg.Header.NumReadonlyUnsignedAccounts,
				},
				AccountKeys:     accountKeys,
				RecentBlockhash: recentBlockhash,
				Instructions:    instructions,
				Versioned:       msg.Version != types.MessageVersionLegacy,
			},
		},
		Meta:   meta,
		IsVote: isVote(accountKeys),
		Slot:   slot,
		Index:  &index,
	}, nil
}

func convertMeta(m *client.TransactionMeta) (*core.TransactionStatusMeta, error) {
	if m == nil {
		return nil, nil
	}

	writable, err := soltypes.TryPubkeysFromBase58(m.LoadedAddresses.Writable)
	if err != nil {
		return nil, fmt.Errorf("loaded writable addresses: %w", err)
	}
	readonly, err := soltypes.TryPubkeysFromBase58(m.LoadedAddresses.Readonly)
	if err != nil {
		return nil, fmt.Errorf("loaded readonly addresses: %w", err)
	}

	// getBlock 不返回 stackHeight，留空由指令树按层级默认值处理
	inners := make([]core.InnerInstructions, len(m.InnerInstructions))
	for i, group := range m.InnerInstructions {
		ixs := make([]core.InnerInstruction, len(group.Instructions))
		for j, ix := range group.Instructions {
			ixs[j] = core.InnerInstruction{
				ProgramIDIndex: uint32(ix.ProgramIDIndex),
				Accounts:       toIndexBytes(ix.Accounts),
				Data:           ix.Data,
			}
		}
		inners[i] = core.InnerInstructions{Index: uint32(group.Index), Instructions: ixs}
	}

	pre, err := convertTokenBalances(m.PreTokenBalances)
	if err != nil {
		return nil, fmt.Errorf("pre token balances: %w", err)
	}
	post, err := convertTokenBalances(m.PostTokenBalances)
	if err != nil {
		return nil, fmt.Errorf("post token balances: %w", err)
	}

	var txErr *core.TransactionError
	if m.Err != nil {
		raw, _ := json.Marshal(m.Err)
		txErr = &core.TransactionError{Raw: raw}
	}

	return &core.TransactionStatusMeta{
		Err:                  txErr,
		Fee:                  m.Fee,
		PreBalances:          toUint64s(m.PreBalances),
		PostBalances:         toUint64s(m.PostBalances),
		InnerInstructions:    inners,
		LogMessages:          m.LogMessages,
		PreTokenBalances:     pre,
		PostTokenBalances:    post,
		LoadedAddresses:      core.LoadedAddresses{Writable: writable, Readonly: readonly},
		ComputeUnitsConsumed: m.ComputeUnitsConsumed,
	}, nil
}

func convertTokenBalances(list []rpc.TransactionMetaTokenBalance) ([]core.TransactionTokenBalance, error) {
	out := make([]core.TransactionTokenBalance, 0, len(list))
	for _, b := range list {
		mint, err := soltypes.TryPubkeyFromBase58(b.Mint)
		if err != nil {
			return nil, fmt.Errorf("mint %q: %w", b.Mint, err)
		}
		var owner, program soltypes.Pubkey
		if b.Owner != "" {
			if owner, err = soltypes.TryPubkeyFromBase58(b.Owner); err != nil {
				return nil, fmt.Errorf("owner %q: %w", b.Owner, err)
			}
		}
		if b.ProgramId != "" {
			if program, err = soltypes.TryPubkeyFromBase58(b.ProgramId); err != nil {
				return nil, fmt.Errorf("program %q: %w", b.ProgramId, err)
			}
		}
		var amount uint64
		if b.UITokenAmount.Amount != "" {
			if amount, err = strconv.ParseUint(b.UITokenAmount.Amount, 10, 64); err != nil {
				return nil, fmt.Errorf("amount %q: %w", b.UITokenAmount.Amount, err)
			}
		}
		out = append(out, core.TransactionTokenBalance{
			AccountIndex: uint32(b.AccountIndex),
			Mint:         mint,
			Owner:        owner,
			ProgramID:    program,
			Amount:       amount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out, nil
}

// isVote getBlock 不标记投票交易，按是否引用 Vote 程序判断
func isVote(keys []soltypes.Pubkey) bool {
	for _, k := range keys {
		if k == consts.VoteProgram {
			return true
		}
	}
	return false
}

func toIndexBytes(idx []int) []byte {
	out := make([]byte, len(idx))
	for i, v := range idx {
		out[i] = byte(v)
	}
	return out
}

func toUint64s(in []int64) []uint64 {
	out := make([]uint64, len(in))
	for i, v := range in {
		out[i] = uint64(v)
	}
	return out
}
