package rpcblock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/client"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/logic/datasource"
	"sol-ingest/internal/metrics"
	"sol-ingest/pkg/logger"
	"sol-ingest/pkg/retry"
	"sol-ingest/pkg/utils"
)

// Options RPC 区块爬取配置。EndSlot 为 0 时持续跟随链上最新 slot，否则爬完区间后返回。
type Options struct {
	Endpoint     string
	StartSlot    uint64 // 0 表示从当前 slot 开始
	EndSlot      uint64
	Ranges       []SlotRange // 额外补扫的区间（仅回填模式）
	BatchSize    uint64      // 每轮处理的 slot 数
	PollInterval time.Duration
	MaxRetries   uint
	Concurrency  int // 并发 getBlock 数
	RpcTimeout   time.Duration
}

func (o *Options) applyDefaults() {
	if o.BatchSize == 0 {
		o.BatchSize = 100
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.RpcTimeout <= 0 {
		o.RpcTimeout = 10 * time.Second
	}
}

// SlotGate 判断某个 slot 是否需要处理（已处理过的历史 slot 跳过）
type SlotGate interface {
	ShouldProcessSlot(ctx context.Context, slot uint64, blockTime int64) (bool, error)
}

type blockClient interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetBlocks(ctx context.Context, from, to uint64) ([]uint64, error)
	GetBlock(ctx context.Context, slot uint64) (*client.Block, error)
}

type rpcBlockClient struct {
	c *client.Client
}

func (r *rpcBlockClient) GetSlot(ctx context.Context) (uint64, error) {
	return r.c.GetSlot(ctx)
}

func (r *rpcBlockClient) GetBlocks(ctx context.Context, from, to uint64) ([]uint64, error) {
	resp, err := r.c.RpcClient.GetBlocks(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getBlocks rpc error: %v", resp.Error)
	}
	return resp.Result, nil
}

func (r *rpcBlockClient) GetBlock(ctx context.Context, slot uint64) (*client.Block, error) {
	return r.c.GetBlock(ctx, slot)
}

// Datasource 通过 JSON-RPC getBlocks/getBlock 爬取区块，产生交易与区块元数据更新。
// 同一区块内交易按区块顺序发送，随后发送该区块的 BlockDetails。
type Datasource struct {
	opt    Options
	client blockClient
	gate   SlotGate
	retry  retry.Retry
}

type Option func(*Datasource)

// WithSlotGate 跳过已处理过的 slot
func WithSlotGate(g SlotGate) Option {
	return func(d *Datasource) { d.gate = g }
}

func New(opt Options, opts ...Option) (*Datasource, error) {
	if opt.Endpoint == "" {
		return nil, errors.New("rpc crawler endpoint is empty")
	}
	if opt.EndSlot > 0 && opt.StartSlot > opt.EndSlot {
		return nil, fmt.Errorf("invalid slot range: start (%d) > end (%d)", opt.StartSlot, opt.EndSlot)
	}
	return newDatasource(opt, &rpcBlockClient{c: client.NewClient(opt.Endpoint)}, opts...), nil
}

func newDatasource(opt Options, c blockClient, opts ...Option) *Datasource {
	opt.applyDefaults()
	d := &Datasource{
		opt:    opt,
		client: c,
		retry: retry.New(
			retry.WithAttempts(opt.MaxRetries),
			retry.WithDelay(300*time.Millisecond),
			retry.WithLogTag("RpcCrawler"),
		),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Datasource) UpdateKinds() []core.UpdateKind {
	return []core.UpdateKind{core.UpdateKindTransaction, core.UpdateKindBlockDetails}
}

func (d *Datasource) Consume(ctx context.Context, id core.DatasourceID, sender chan<- datasource.Envelope, m *metrics.MetricsCollection) error {
	if d.opt.EndSlot > 0 {
		return d.backfill(ctx, id, sender, m)
	}
	return d.follow(ctx, id, sender, m)
}

// backfill 爬取 [StartSlot, EndSlot] 及额外区间后返回
func (d *Datasource) backfill(ctx context.Context, id core.DatasourceID, sender chan<- datasource.Envelope, m *metrics.MetricsCollection) error {
	ranges := append([]SlotRange{{From: d.opt.StartSlot, To: d.opt.EndSlot}}, d.opt.Ranges...)
	chunks := mergeRanges(ranges, d.opt.BatchSize)
	if len(chunks) == 0 {
		return nil
	}
	logger.Infof("[RpcCrawler] backfill %d chunks, slots [%d, %d]", len(chunks), chunks[0].From, chunks[len(chunks)-1].To)

	for _, r := range chunks {
		if err := d.crawl(ctx, id, r, sender, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("crawl [%d, %d]: %w", r.From, r.To, err)
		}
	}
	logger.Infof("[RpcCrawler] backfill finished")
	return nil
}

// follow 持续跟随最新 slot；单轮失败后等待 PollInterval 重试同一区间
func (d *Datasource) follow(ctx context.Context, id core.DatasourceID, sender chan<- datasource.Envelope, m *metrics.MetricsCollection) error {
	label := metrics.L("datasource", id.String())

	cursor := d.opt.StartSlot
	if cursor == 0 {
		tip, err := d.getSlot(ctx)
		if err != nil {
			return fmt.Errorf("get current slot: %w", err)
		}
		cursor = tip
	}
	logger.Infof("[RpcCrawler] following from slot %d", cursor)

	for {
		tip, err := d.getSlot(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Warnf("[RpcCrawler] get current slot failed: %v", err)
			m.IncrementCounter(metrics.DatasourceErrors, 1, label)
		case tip >= cursor:
			r := SlotRange{From: cursor, To: min(cursor+d.opt.BatchSize-1, tip)}
			err = d.crawl(ctx, id, r, sender, m)
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				cursor = r.To + 1
				continue
			}
			logger.Warnf("[RpcCrawler] crawl [%d, %d] failed: %v", r.From, r.To, err)
			m.IncrementCounter(metrics.DatasourceErrors, 1, label)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.opt.PollInterval):
		}
	}
}

type fetched struct {
	slot  uint64
	block *client.Block
	err   error
}

// crawl 处理一个区间：getBlocks 确认非空 slot，并发拉取区块，再按 slot 顺序发送
func (d *Datasource) crawl(ctx context.Context, id core.DatasourceID, r SlotRange, sender chan<- datasource.Envelope, m *metrics.MetricsCollection) error {
	label := metrics.L("datasource", id.String())

	var slots []uint64
	err := d.retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.opt.RpcTimeout)
		defer cancel()
		var err error
		slots, err = d.client.GetBlocks(callCtx, r.From, r.To)
		return err
	})
	if err != nil {
		return fmt.Errorf("getBlocks: %w", err)
	}
	if empty := emptySlots(r.From, r.To, slots); len(empty) > 0 {
		m.IncrementCounter(metrics.CrawlerEmptySlots, uint64(len(empty)), label)
	}

	blocks := utils.ParallelMap(slots, d.opt.Concurrency, func(slot uint64) fetched {
		if ctx.Err() != nil {
			return fetched{slot: slot, err: ctx.Err()}
		}
		var block *client.Block
		err := d.retry.Execute(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, d.opt.RpcTimeout)
			defer cancel()
			var err error
			block, err = d.client.GetBlock(callCtx, slot)
			return err
		})
		return fetched{slot: slot, block: block, err: err}
	})

	for _, f := range blocks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if f.err != nil {
			logger.Errorf("[RpcCrawler] slot %d getBlock failed after retries, 疑似漏扫: %v", f.slot, f.err)
			m.IncrementCounter(metrics.DatasourceErrors, 1, label)
			continue
		}
		m.IncrementCounter(metrics.CrawlerBlocksFetched, 1, label)

		if !d.emitBlock(ctx, id, f.slot, f.block, sender, m) {
			return ctx.Err()
		}
	}
	return nil
}

// emitBlock 返回 false 表示 ctx 已取消
func (d *Datasource) emitBlock(ctx context.Context, id core.DatasourceID, slot uint64, block *client.Block, sender chan<- datasource.Envelope, m *metrics.MetricsCollection) bool {
	label := metrics.L("datasource", id.String())

	if d.gate != nil {
		var blockTime int64
		if block.BlockTime != nil {
			blockTime = block.BlockTime.Unix()
		}
		ok, err := d.gate.ShouldProcessSlot(ctx, slot, blockTime)
		if err != nil {
			logger.Warnf("[RpcCrawler] slot %d progress check failed, processing anyway: %v", slot, err)
		} else if !ok {
			m.IncrementCounter(metrics.CrawlerSlotsSkipped, 1, label)
			return true
		}
	}

	txs, details, err := convertBlock(slot, block)
	if err != nil {
		logger.Errorf("[RpcCrawler] slot %d convert failed: %v", slot, err)
		m.IncrementCounter(metrics.DatasourceErrors, 1, label)
		return true
	}

	for _, tx := range txs {
		if !datasource.Send(ctx, sender, tx, id) {
			return false
		}
	}
	if !datasource.Send(ctx, sender, details, id) {
		return false
	}
	m.UpdateGauge(metrics.DatasourceLastSlot, float64(slot), label)
	return true
}

func (d *Datasource) getSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := d.retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.opt.RpcTimeout)
		defer cancel()
		var err error
		slot, err = d.client.GetSlot(callCtx)
		return err
	})
	return slot, err
}
