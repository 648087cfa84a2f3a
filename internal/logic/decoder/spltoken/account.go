package spltoken

import (
	"encoding/binary"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/types"
)

const (
	MintSize         = 82
	TokenAccountSize = 165
)

// 账户类型
const (
	TypeMint         = "mint"
	TypeTokenAccount = "token_account"
)

// AccountState token 账户状态
type AccountState uint8

const (
	StateUninitialized AccountState = iota
	StateInitialized
	StateFrozen
)

type Mint struct {
	MintAuthority   *types.Pubkey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *types.Pubkey
}

type TokenAccount struct {
	Mint            types.Pubkey
	Owner           types.Pubkey
	Amount          uint64
	Delegate        *types.Pubkey
	State           AccountState
	IsNative        *uint64 // 原生 SOL 账户的 rent-exempt 储备
	DelegatedAmount uint64
	CloseAuthority  *types.Pubkey
}

// Account 账户解码结果，Mint 与 TokenAccount 二选一
type Account struct {
	Type         string
	Mint         *Mint
	TokenAccount *TokenAccount
}

type AccountDecoder struct{}

var _ core.AccountDecoder[Account] = AccountDecoder{}

// DecodeAccount 按长度区分 mint / token account；Token-2022 扩展数据（长度超出部分）忽略
func (AccountDecoder) DecodeAccount(account *core.Account) *core.DecodedAccount[Account] {
	if !IsTokenProgram(account.Owner) {
		return nil
	}

	var out Account
	switch {
	case len(account.Data) == MintSize:
		m, ok := decodeMint(account.Data)
		if !ok {
			return nil
		}
		out = Account{Type: TypeMint, Mint: m}
	case len(account.Data) >= TokenAccountSize:
		ta, ok := decodeTokenAccount(account.Data)
		if !ok {
			return nil
		}
		out = Account{Type: TypeTokenAccount, TokenAccount: ta}
	default:
		return nil
	}

	return &core.DecodedAccount[Account]{
		Lamports:   account.Lamports,
		Owner:      account.Owner,
		Executable: account.Executable,
		RentEpoch:  account.RentEpoch,
		Data:       out,
	}
}

func decodeMint(data []byte) (*Mint, bool) {
	m := &Mint{
		MintAuthority:   readCOptionPubkey(data[0:36]),
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		IsInitialized:   data[45] == 1,
		FreezeAuthority: readCOptionPubkey(data[46:82]),
	}
	if !m.IsInitialized {
		return nil, false
	}
	return m, true
}

func decodeTokenAccount(data []byte) (*TokenAccount, bool) {
	ta := &TokenAccount{
		Amount:          binary.LittleEndian.Uint64(data[64:72]),
		Delegate:        readCOptionPubkey(data[72:108]),
		State:           AccountState(data[108]),
		DelegatedAmount: binary.LittleEndian.Uint64(data[121:129]),
		CloseAuthority:  readCOptionPubkey(data[129:165]),
	}
	copy(ta.Mint[:], data[0:32])
	copy(ta.Owner[:], data[32:64])
	if binary.LittleEndian.Uint32(data[109:113]) == 1 {
		reserve := binary.LittleEndian.Uint64(data[113:121])
		ta.IsNative = &reserve
	}
	if ta.State == StateUninitialized || ta.State > StateFrozen {
		return nil, false
	}
	return ta, true
}

// readCOptionPubkey 4 字节 tag + 32 字节 pubkey
func readCOptionPubkey(b []byte) *types.Pubkey {
	if binary.LittleEndian.Uint32(b[0:4]) != 1 {
		return nil
	}
	var pk types.Pubkey
	copy(pk[:], b[4:36])
	return &pk
}
