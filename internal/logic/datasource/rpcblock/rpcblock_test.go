package rpcblock

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/metrics"
)

func TestMergeRanges(t *testing.T) {
	assert.Nil(t, mergeRanges(nil, 10))

	// 拆分
	assert.Equal(t, []SlotRange{{0, 9}, {10, 19}, {20, 24}}, mergeRanges([]SlotRange{{0, 24}}, 10))

	// 相邻、重叠、包含、乱序
	got := mergeRanges([]SlotRange{{30, 35}, {0, 3}, {4, 6}, {2, 5}, {31, 32}}, 10)
	assert.Equal(t, []SlotRange{{0, 6}, {30, 35}}, got)

	// 合并后超过上限时拆出新段
	got = mergeRanges([]SlotRange{{0, 7}, {8, 15}}, 10)
	assert.Equal(t, []SlotRange{{0, 9}, {10, 15}}, got)

	for _, r := range mergeRanges([]SlotRange{{5, 1000}, {3, 40}, {900, 2000}}, 128) {
		assert.LessOrEqual(t, r.Len(), 128)
	}

	// 非法区间被忽略
	assert.Nil(t, mergeRanges([]SlotRange{{5, 1}}, 10))
}

func TestEmptySlots(t *testing.T) {
	assert.Nil(t, emptySlots(10, 12, []uint64{10, 11, 12}))
	assert.Equal(t, []uint64{10, 11, 12}, emptySlots(10, 12, nil))
	assert.Equal(t, []uint64{10, 13, 15}, emptySlots(10, 15, []uint64{14, 11, 12}))
}

var (
	payer   = common.PublicKeyFromBytes(bytes.Repeat([]byte{1}, 32))
	program = common.PublicKeyFromBytes(bytes.Repeat([]byte{2}, 32))
	altKey  = common.PublicKeyFromBytes(bytes.Repeat([]byte{3}, 32))
)

func testBlock(slot uint64, txCount int) *client.Block {
	bt := time.Unix(1_700_000_000+int64(slot), 0)
	height := int64(slot - 10)
	block := &client.Block{
		Blockhash:         "11111111111111111111111111111111",
		PreviousBlockhash: "11111111111111111111111111111111",
		BlockTime:         &bt,
		BlockHeight:       &height,
		ParentSlot:        slot - 1,
	}
	for i := 0; i < txCount; i++ {
		block.Transactions = append(block.Transactions, client.BlockTransaction{
			Meta: &client.TransactionMeta{
				Fee:          5000,
				PreBalances:  []int64{100, 0},
				PostBalances: []int64{95, 0},
				InnerInstructions: []client.InnerInstruction{{
					Index: 0,
					Instructions: []types.CompiledInstruction{
						{ProgramIDIndex: 1, Accounts: []int{2}, Data: []byte{9}},
					},
				}},
				LoadedAddresses: rpc.TransactionLoadedAddresses{Writable: []string{altKey.ToBase58()}},
			},
			Transaction: types.Transaction{
				Signatures: []types.Signature{bytes.Repeat([]byte{byte(i + 1)}, 64)},
				Message: types.Message{
					Version:      types.MessageVersionV0,
					Header:       types.MessageHeader{NumRequireSignatures: 1},
					Accounts:     []common.PublicKey{payer, program},
					Instructions: []types.CompiledInstruction{{ProgramIDIndex: 1, Accounts: []int{0, 2}, Data: []byte{byte(i)}}},
				},
			},
		})
	}
	return block
}

func TestConvertBlock(t *testing.T) {
	txs, details, err := convertBlock(100, testBlock(100, 2))
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Equal(t, uint64(100), details.Slot)
	assert.Equal(t, int64(1_700_000_100), *details.BlockTime)
	assert.Equal(t, uint64(90), *details.BlockHeight)
	require.NotNil(t, details.BlockHash)

	tx := txs[1]
	assert.Equal(t, uint64(1), *tx.Index)
	assert.Equal(t, details.BlockTime, tx.BlockTime)
	assert.True(t, tx.Transaction.Message.Versioned)
	assert.Equal(t, []uint64{95, 0}, tx.Meta.PostBalances)
	assert.Equal(t, byte(2), tx.Transaction.Signatures[0][0])
	assert.Nil(t, tx.Meta.InnerInstructions[0].Instructions[0].StackHeight)
	assert.False(t, tx.IsVote)

	// 转换结果可直接构建调用树：ALT 账户可解析，缺省 stack height 视为 CPI
	txMeta, err := core.NewTransactionMetadata(tx)
	require.NoError(t, err)
	assert.Len(t, txMeta.AccountKeys(), 3)
	assert.True(t, txMeta.IsWritable(2))
}

func TestConvertBlock_Invalid(t *testing.T) {
	block := testBlock(5, 1)
	block.Transactions[0].Meta.LoadedAddresses.Writable = []string{"bad!"}
	_, _, err := convertBlock(5, block)
	assert.ErrorContains(t, err, "loaded writable")

	block = testBlock(5, 1)
	block.Transactions[0].Transaction.Signatures = nil
	_, _, err = convertBlock(5, block)
	assert.Error(t, err)
}

type fakeClient struct {
	mu        sync.Mutex
	tip       uint64
	produced  map[uint64]int // slot → tx 数量，不在表中的 slot 为空块
	failBlock map[uint64]bool
	calls     int
}

func (f *fakeClient) GetSlot(context.Context) (uint64, error) { return f.tip, nil }

func (f *fakeClient) GetBlocks(_ context.Context, from, to uint64) ([]uint64, error) {
	var out []uint64
	for s := from; s <= to; s++ {
		if _, ok := f.produced[s]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeClient) GetBlock(_ context.Context, slot uint64) (*client.Block, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failBlock[slot] {
		return nil, errors.New("node unavailable")
	}
	return testBlock(slot, f.produced[slot]), nil
}

type gate struct{ skip map[uint64]bool }

func (g gate) ShouldProcessSlot(_ context.Context, slot uint64, _ int64) (bool, error) {
	return !g.skip[slot], nil
}

func collect(t *testing.T, ds *Datasource) ([]datasource.Envelope, *metrics.LogMetrics) {
	t.Helper()
	lm := metrics.NewLogMetrics()
	ch := make(chan datasource.Envelope, 100)
	require.NoError(t, ds.Consume(context.Background(), core.NewDatasourceID("rpc"), ch, metrics.NewMetricsCollection(lm)))
	close(ch)

	var out []datasource.Envelope
	for env := range ch {
		out = append(out, env)
	}
	return out, lm
}

func TestBackfill_OrderAndGate(t *testing.T) {
	fc := &fakeClient{
		produced:  map[uint64]int{20: 2, 21: 1, 23: 0, 25: 1},
		failBlock: map[uint64]bool{25: true},
	}
	ds := newDatasource(Options{Endpoint: "x", StartSlot: 20, EndSlot: 25, BatchSize: 3, Concurrency: 2, MaxRetries: 1},
		fc, WithSlotGate(gate{skip: map[uint64]bool{21: true}}))

	envs, lm := collect(t, ds)

	var kinds []core.UpdateKind
	var slots []uint64
	for _, env := range envs {
		kinds = append(kinds, env.Update.Kind())
		slots = append(slots, env.Update.GetSlot())
		assert.Equal(t, core.DatasourceID("rpc"), env.ID)
	}
	// slot 20: 两笔交易 + 区块；21 被跳过；22/24 为空块；23 只有区块；25 拉取失败
	assert.Equal(t, []uint64{20, 20, 20, 23}, slots)
	assert.Equal(t, []core.UpdateKind{
		core.UpdateKindTransaction, core.UpdateKindTransaction, core.UpdateKindBlockDetails, core.UpdateKindBlockDetails,
	}, kinds)

	label := metrics.L("datasource", "rpc")
	assert.Equal(t, uint64(1), lm.Counter(metrics.CrawlerSlotsSkipped, label))
	assert.Equal(t, uint64(2), lm.Counter(metrics.CrawlerEmptySlots, label))
	assert.Equal(t, uint64(1), lm.Counter(metrics.DatasourceErrors, label))
	assert.Equal(t, float64(23), lm.Gauge(metrics.DatasourceLastSlot, label))
}

func TestFollow_StopsOnCancel(t *testing.T) {
	fc := &fakeClient{tip: 50, produced: map[uint64]int{48: 1, 50: 1}}
	ds := newDatasource(Options{Endpoint: "x", StartSlot: 48, PollInterval: 5 * time.Millisecond}, fc)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan datasource.Envelope, 100)
	done := make(chan error, 1)
	go func() {
		done <- ds.Consume(ctx, core.NewDatasourceID("rpc"), ch, metrics.NewMetricsCollection())
	}()

	var got []uint64
	for len(got) < 4 {
		select {
		case env := <-ch:
			got = append(got, env.Update.GetSlot())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for updates")
		}
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("follow did not stop")
	}
	assert.Equal(t, []uint64{48, 48, 50, 50}, got)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Endpoint: "http://localhost:8899", StartSlot: 10, EndSlot: 5})
	assert.Error(t, err)

	ds, err := New(Options{Endpoint: "http://localhost:8899"})
	require.NoError(t, err)
	assert.Equal(t, []core.UpdateKind{core.UpdateKindTransaction, core.UpdateKindBlockDetails}, ds.UpdateKinds())
	assert.Equal(t, uint64(100), ds.opt.BatchSize)
}
