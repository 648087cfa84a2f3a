package yellowstone

import (
	"fmt"
	"strconv"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

// pubkeyCache base58 → Pubkey 解码缓存，仅在单个 Consume goroutine 内使用
type pubkeyCache struct {
	cached map[string]types.Pubkey
}

func newPubkeyCache() *pubkeyCache {
	return &pubkeyCache{cached: make(map[string]types.Pubkey, 1024)}
}

func (c *pubkeyCache) resolve(s string) (types.Pubkey, error) {
	if pk, ok := c.cached[s]; ok {
		return pk, nil
	}
	pk, err := types.TryPubkeyFromBase58(s)
	if err != nil {
		return types.Pubkey{}, err
	}
	// 防止无限增长：owner/mint 数量在正常流量下有限，超过上限直接重置
	if len(c.cached) >= 1<<16 {
		c.cached = make(map[string]types.Pubkey, 1024)
	}
	c.cached[s] = pk
	return pk, nil
}

// convertAccount lamports 为 0 表示账户已关闭，转换为 AccountDeletion
func convertAccount(u *pb.SubscribeUpdateAccount) (core.Update, error) {
	info := u.Account
	if info == nil {
		return nil, fmt.Errorf("account update at slot %d has no account info", u.Slot)
	}

	pubkey, err := types.PubkeyFromBytes(info.Pubkey)
	if err != nil {
		return nil, fmt.Errorf("account pubkey: %w", err)
	}

	var sig *types.Signature
	if len(info.TxnSignature) > 0 {
		s, err := types.SignatureFromBytes(info.TxnSignature)
		if err != nil {
			return nil, fmt.Errorf("account txn signature: %w", err)
		}
		sig = &s
	}

	if info.Lamports == 0 {
		return &core.AccountDeletion{
			Pubkey:               pubkey,
			Slot:                 u.Slot,
			TransactionSignature: sig,
		}, nil
	}

	owner, err := types.PubkeyFromBytes(info.Owner)
	if err != nil {
		return nil, fmt.Errorf("account owner: %w", err)
	}

	return &core.AccountUpdate{
		Pubkey: pubkey,
		Account: core.Account{
			Lamports:   info.Lamports,
			Owner:      owner,
			Executable: info.Executable,
			RentEpoch:  info.RentEpoch,
			Data:       info.Data,
		},
		Slot:                 u.Slot,
		TransactionSignature: sig,
	}, nil
}

// convertTransaction 将 Geyser 推送的交易转换为 TransactionUpdate
func convertTransaction(slot uint64, tx *pb.SubscribeUpdateTransactionInfo, cache *pubkeyCache) (*core.TransactionUpdate, error) {
	if tx == nil || tx.Transaction == nil || tx.Transaction.Message == nil {
		return nil, fmt.Errorf("transaction at slot %d is incomplete", slot)
	}

	signature, err := types.SignatureFromBytes(tx.Signature)
	if err != nil {
		return nil, fmt.Errorf("transaction signature: %w", err)
	}

	msg := tx.Transaction.Message
	accountKeys, err := toPubkeys(msg.AccountKeys)
	if err != nil {
		return nil, fmt.Errorf("accountKeys: %w", err)
	}

	signatures := make([]types.Signature, 0, len(tx.Transaction.Signatures))
	for _, raw := range tx.Transaction.Signatures {
		s, err := types.SignatureFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("signatures: %w", err)
		}
		signatures = append(signatures, s)
	}

	var recentBlockhash types.Hash
	if len(msg.RecentBlockhash) > 0 {
		if recentBlockhash, err = types.HashFromBytes(msg.RecentBlockhash); err != nil {
			return nil, fmt.Errorf("recent blockhash: %w", err)
		}
	}

	instructions := make([]core.CompiledInstruction, len(msg.Instructions))
	for i, ix := range msg.Instructions {
		instructions[i] = core.CompiledInstruction{
			ProgramIDIndex: ix.ProgramIdIndex,
			Accounts:       ix.Accounts,
			Data:           ix.Data,
		}
	}

	var header core.MessageHeader
	if msg.Header != nil {
		header = core.MessageHeader{
			NumRequiredSignatures:       uint8(msg.Header.NumRequiredSignatures),
			NumReadonlySignedAccounts:   uint8(msg.Header.NumReadonlySignedAccounts),
			NumReadonlyUnsignedAccounts: uint8(msg.Header.NumReadonlyUnsignedAccounts),
		}
	}

	meta, err := convertMeta(tx.Meta, cache)
	if err != nil {
		return nil, err
	}

	index := tx.Index
	return &core.TransactionUpdate{
		Signature: signature,
		Transaction: &core.Transaction{
			Signatures: signatures,
			Message: core.Message{
				Header:          header,
				AccountKeys:     accountKeys,
				RecentBlockhash: recentBlockhash,
				Instructions:    instructions,
				Versioned:       msg.Versioned,
			},
		},
		Meta:   meta,
		IsVote: tx.IsVote,
		Slot:   slot,
		Index:  &index,
	}, nil
}

func convertMeta(m *pb.TransactionStatusMeta, cache *pubkeyCache) (*core.TransactionStatusMeta, error) {
	if m == nil {
		return nil, nil
	}

	writable, err := toPubkeys(m.LoadedWritableAddresses)
	if err != nil {
		return nil, fmt.Errorf("loaded writable addresses: %w", err)
	}
	readonly, err := toPubkeys(m.LoadedReadonlyAddresses)
	if err != nil {
		return nil, fmt.Errorf("loaded readonly addresses: %w", err)
	}

	inners := make([]core.InnerInstructions, len(m.InnerInstructions))
	for i, group := range m.InnerInstructions {
		ixs := make([]core.InnerInstruction, len(group.Instructions))
		for j, ix := range group.Instructions {
			ixs[j] = core.InnerInstruction{
				ProgramIDIndex: ix.ProgramIdIndex,
				Accounts:       ix.Accounts,
				Data:           ix.Data,
				StackHeight:    ix.StackHeight,
			}
		}
		inners[i] = core.InnerInstructions{Index: group.Index, Instructions: ixs}
	}

	pre, err := convertTokenBalances(m.PreTokenBalances, cache)
	if err != nil {
		return nil, fmt.Errorf("pre token balances: %w", err)
	}
	post, err := convertTokenBalances(m.PostTokenBalances, cache)
	if err != nil {
		return nil, fmt.Errorf("post token balances: %w", err)
	}

	var txErr *core.TransactionError
	if m.Err != nil {
		txErr = &core.TransactionError{Raw: m.Err.Err}
	}

	return &core.TransactionStatusMeta{
		Err:                  txErr,
		Fee:                  m.Fee,
		PreBalances:          m.PreBalances,
		PostBalances:         m.PostBalances,
		InnerInstructions:    inners,
		LogMessages:          m.LogMessages,
		PreTokenBalances:     pre,
		PostTokenBalances:    post,
		LoadedAddresses:      core.LoadedAddresses{Writable: writable, Readonly: readonly},
		ComputeUnitsConsumed: m.ComputeUnitsConsumed,
	}, nil
}

func convertTokenBalances(list []*pb.TokenBalance, cache *pubkeyCache) ([]core.TransactionTokenBalance, error) {
	out := make([]core.TransactionTokenBalance, 0, len(list))
	for _, b := range list {
		mint, err := cache.resolve(b.Mint)
		if err != nil {
			return nil, fmt.Errorf("mint %q: %w", b.Mint, err)
		}
		// 部分历史交易 owner / programId 为空
		var owner, program types.Pubkey
		if b.Owner != "" {
			if owner, err = cache.resolve(b.Owner); err != nil {
				return nil, fmt.Errorf("owner %q: %w", b.Owner, err)
			}
		}
		if b.ProgramId != "" {
			if program, err = cache.resolve(b.ProgramId); err != nil {
				return nil, fmt.Errorf("program %q: %w", b.ProgramId, err)
			}
		}

		var amount uint64
		var decimals uint8
		if b.UiTokenAmount != nil {
			if b.UiTokenAmount.Amount != "" {
				if amount, err = strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64); err != nil {
					return nil, fmt.Errorf("amount %q: %w", b.UiTokenAmount.Amount, err)
				}
			}
			decimals = uint8(b.UiTokenAmount.Decimals)
		}

		out = append(out, core.TransactionTokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         mint,
			Owner:        owner,
			ProgramID:    program,
			Amount:       amount,
			Decimals:     decimals,
		})
	}
	return out, nil
}

func convertBlockMeta(b *pb.SubscribeUpdateBlockMeta, cache *pubkeyCache) (*core.BlockDetails, error) {
	details := &core.BlockDetails{Slot: b.Slot}

	if b.Blockhash != "" {
		h, err := types.HashFromBase58(b.Blockhash)
		if err != nil {
			return nil, fmt.Errorf("blockhash: %w", err)
		}
		details.BlockHash = &h
	}
	if b.ParentBlockhash != "" {
		h, err := types.HashFromBase58(b.ParentBlockhash)
		if err != nil {
			return nil, fmt.Errorf("parent blockhash: %w", err)
		}
		details.PreviousBlockHash = &h
	}
	if b.BlockTime != nil {
		ts := b.BlockTime.Timestamp
		details.BlockTime = &ts
	}
	if b.BlockHeight != nil {
		height := b.BlockHeight.BlockHeight
		details.BlockHeight = &height
	}

	if b.Rewards != nil {
		if b.Rewards.NumPartitions != nil {
			n := b.Rewards.NumPartitions.NumPartitions
			details.NumRewardPartitions = &n
		}
		details.Rewards = make([]core.Reward, 0, len(b.Rewards.Rewards))
		for _, r := range b.Rewards.Rewards {
			pk, err := cache.resolve(r.Pubkey)
			if err != nil {
				return nil, fmt.Errorf("reward pubkey %q: %w", r.Pubkey, err)
			}
			reward := core.Reward{
				Pubkey:      pk,
				Lamports:    r.Lamports,
				PostBalance: r.PostBalance,
				RewardType:  r.RewardType.String(),
			}
			if r.Commission != "" {
				if c, err := strconv.ParseUint(r.Commission, 10, 8); err == nil {
					commission := uint8(c)
					reward.Commission = &commission
				}
			}
			details.Rewards = append(details.Rewards, reward)
		}
	}
	return details, nil
}

func toPubkeys(raw [][]byte) ([]types.Pubkey, error) {
	out := make([]types.Pubkey, len(raw))
	for i, b := range raw {
		if len(b) != 32 {
			return nil, fmt.Errorf("invalid pubkey length %d at index %d", len(b), i)
		}
		copy(out[i][:], b)
	}
	return out, nil
}
