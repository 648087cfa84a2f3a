package pipe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/filter"
	"sol-ingest/internal/logic/instruction"
	"sol-ingest/internal/logic/schema"
	"sol-ingest/internal/metrics"
	"sol-ingest/internal/types"
)

var (
	ownerA = types.Pubkey{0xaa}
	ownerB = types.Pubkey{0xbb}
	dsID   = core.NewDatasourceID("test")
)

type testAccount struct {
	size int
}

var accountDecoder = core.AccountDecoderFunc[testAccount](func(a *core.Account) *core.DecodedAccount[testAccount] {
	if a.Owner != ownerA {
		return nil
	}
	return &core.DecodedAccount[testAccount]{
		Lamports: a.Lamports,
		Owner:    a.Owner,
		Data:     testAccount{size: len(a.Data)},
	}
})

type testIx string

func (t testIx) InstructionType() string { return string(t) }

var ixDecoder = core.InstructionDecoderFunc[testIx](func(ix *core.Instruction) *core.DecodedInstruction[testIx] {
	if ix.ProgramID != ownerA {
		return nil
	}
	return &core.DecodedInstruction[testIx]{ProgramID: ix.ProgramID, Data: testIx(ix.Data)}
})

func newMetrics() (*metrics.MetricsCollection, *metrics.LogMetrics) {
	lm := metrics.NewLogMetrics()
	return metrics.NewMetricsCollection(lm), lm
}

func TestAccountPipe(t *testing.T) {
	m, lm := newMetrics()
	var got []AccountInput[testAccount]
	p := NewAccountPipe("accounts", accountDecoder, ProcessorFunc[AccountInput[testAccount]](
		func(_ context.Context, in AccountInput[testAccount], _ *metrics.MetricsCollection) error {
			got = append(got, in)
			return nil
		}))

	meta := core.AccountMetadata{Slot: 7}
	require.NoError(t, p.Run(context.Background(), dsID, meta, &core.Account{Owner: ownerA, Lamports: 5, Data: []byte{1, 2}}, m))
	// 不属于该解码器的账户不是错误
	require.NoError(t, p.Run(context.Background(), dsID, meta, &core.Account{Owner: ownerB}, m))

	require.Len(t, got, 1)
	assert.Equal(t, uint64(5), got[0].Decoded.Lamports)
	assert.Equal(t, 2, got[0].Decoded.Data.size)
	assert.Equal(t, uint64(7), got[0].Metadata.Slot)

	label := metrics.L("pipe", "accounts")
	assert.Equal(t, uint64(1), lm.Counter(metrics.PipeRuns, label))
	assert.Equal(t, uint64(1), lm.Counter(metrics.PipeSkipped, label))
	assert.Equal(t, uint64(1), lm.Histogram(metrics.PipeDurationMillis, label).Count)
}

func TestAccountPipe_ProcessorError(t *testing.T) {
	m, lm := newMetrics()
	boom := errors.New("boom")
	p := NewAccountPipe("accounts", accountDecoder, ProcessorFunc[AccountInput[testAccount]](
		func(context.Context, AccountInput[testAccount], *metrics.MetricsCollection) error { return boom }))

	err := p.Run(context.Background(), dsID, core.AccountMetadata{}, &core.Account{Owner: ownerA}, m)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "pipe accounts")
	assert.Equal(t, uint64(1), lm.Counter(metrics.PipeFailures, metrics.L("pipe", "accounts")))
	assert.Equal(t, uint64(1), lm.Histogram(metrics.PipeDurationMillis, metrics.L("pipe", "accounts")).Count)
}

func TestPipe_PanicBecomesError(t *testing.T) {
	m, lm := newMetrics()
	p := NewAccountDeletionPipe("deletions", ProcessorFunc[*core.AccountDeletion](
		func(context.Context, *core.AccountDeletion, *metrics.MetricsCollection) error { panic("bad processor") }))

	var err error
	assert.NotPanics(t, func() {
		err = p.Run(context.Background(), dsID, &core.AccountDeletion{}, m)
	})
	assert.ErrorContains(t, err, "bad processor")
	assert.Equal(t, uint64(1), lm.Counter(metrics.PipeFailures, metrics.L("pipe", "deletions")))
	assert.Equal(t, uint64(1), lm.Histogram(metrics.PipeDurationMillis, metrics.L("pipe", "deletions")).Count)
}

func TestPipe_DatasourceFilter(t *testing.T) {
	m, _ := newMetrics()
	calls := 0
	p := NewBlockDetailsPipe("blocks", ProcessorFunc[*core.BlockDetails](
		func(context.Context, *core.BlockDetails, *metrics.MetricsCollection) error {
			calls++
			return nil
		}), filter.NewDatasourceFilter(dsID))

	require.NoError(t, p.Run(context.Background(), dsID, &core.BlockDetails{}, m))
	require.NoError(t, p.Run(context.Background(), core.NewDatasourceID("other"), &core.BlockDetails{}, m))
	assert.Equal(t, 1, calls)
}

func buildTree(t *testing.T, list ...core.Instruction) core.NestedInstructions {
	t.Helper()
	heights := []uint32{1, 2, 2, 1}
	in := make([]instruction.WithMetadata, len(list))
	for i, ix := range list {
		in[i] = instruction.WithMetadata{
			Metadata:    core.InstructionMetadata{StackHeight: heights[i%len(heights)]},
			Instruction: ix,
		}
	}
	return instruction.BuildNestedInstructions(in)
}

func TestInstructionPipe(t *testing.T) {
	m, _ := newMetrics()
	var seen []string
	p := NewInstructionPipe("ixs", ixDecoder, ProcessorFunc[InstructionInput[testIx]](
		func(_ context.Context, in InstructionInput[testIx], _ *metrics.MetricsCollection) error {
			seen = append(seen, string(in.Decoded.Data))
			return nil
		}))

	tree := buildTree(t,
		core.Instruction{ProgramID: ownerA, Data: []byte("Swap")},
		core.Instruction{ProgramID: ownerB, Data: []byte("Other")},
		core.Instruction{ProgramID: ownerA, Data: []byte("Transfer")},
	)
	for _, ix := range tree.Flatten() {
		require.NoError(t, p.Run(context.Background(), dsID, ix, m))
	}
	assert.Equal(t, []string{"Swap", "Transfer"}, seen)
}

func TestTransactionPipe_WithSchema(t *testing.T) {
	m, _ := newMetrics()
	var got []TransactionInput[testIx]
	proc := ProcessorFunc[TransactionInput[testIx]](
		func(_ context.Context, in TransactionInput[testIx], _ *metrics.MetricsCollection) error {
			got = append(got, in)
			return nil
		})

	s := schema.MustNew(schema.Ix("Swap", "swap", schema.Any(), schema.Ix("Transfer", "transfer")))
	p := NewTransactionPipe("swaps", s, ixDecoder, proc)

	matching := buildTree(t,
		core.Instruction{ProgramID: ownerA, Data: []byte("Swap")},
		core.Instruction{ProgramID: ownerB, Data: []byte("Log")},
		core.Instruction{ProgramID: ownerA, Data: []byte("Transfer")},
	)
	other := buildTree(t, core.Instruction{ProgramID: ownerA, Data: []byte("Transfer")})

	meta := &core.TransactionMetadata{Slot: 1}
	require.NoError(t, p.Run(context.Background(), dsID, meta, matching, m))
	require.NoError(t, p.Run(context.Background(), dsID, meta, other, m))

	require.Len(t, got, 1)
	tr, ok := got[0].Match.Get("swap", "transfer")
	require.True(t, ok)
	assert.Equal(t, testIx("Transfer"), tr.Instruction.Data)
	assert.Len(t, got[0].Instructions, 2)
	assert.Same(t, meta, got[0].Metadata)
}

func TestTransactionPipe_NoSchema(t *testing.T) {
	m, _ := newMetrics()
	calls := 0
	p := NewTransactionPipe("all", nil, ixDecoder, ProcessorFunc[TransactionInput[testIx]](
		func(_ context.Context, in TransactionInput[testIx], _ *metrics.MetricsCollection) error {
			calls++
			assert.Nil(t, in.Match)
			return nil
		}))

	require.NoError(t, p.Run(context.Background(), dsID, &core.TransactionMetadata{}, nil, m))
	require.NoError(t, p.Run(context.Background(), dsID, &core.TransactionMetadata{},
		buildTree(t, core.Instruction{ProgramID: ownerB}), m))
	assert.Equal(t, 2, calls)
}
