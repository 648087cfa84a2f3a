package progress

import (
	"context"
	"time"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/metrics"
	"sol-ingest/pkg/logger"
)

type statusStore interface {
	GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error)
	MarkSlotStatus(ctx context.Context, slot uint64, status SlotStatus) error
}

type recordStore interface {
	CheckSlotExists(ctx context.Context, slot uint64) (bool, error)
	BatchInsertSlots(ctx context.Context, slots []*SlotRecord) error
	DeleteOldSlots(ctx context.Context, keepDays int) error
}

// ProgressManager 统一封装 Redis + DB + 缓存，控制进度判重与写入
type ProgressManager struct {
	redis           statusStore
	db              recordStore
	buffer          *slotBuffer
	recentThreshold time.Duration // 新 block 的判断阈值
	now             func() time.Time
}

// NewProgressManager db 为 nil 时只使用 Redis 判重，不落库
func NewProgressManager(redis *RedisProgressStore, db *DBProgressStore, recentThresholdSec int) *ProgressManager {
	if db == nil {
		return newProgressManager(redis, noopRecordStore{}, recentThresholdSec)
	}
	return newProgressManager(redis, db, recentThresholdSec)
}

type noopRecordStore struct{}

func (noopRecordStore) CheckSlotExists(context.Context, uint64) (bool, error) { return false, nil }
func (noopRecordStore) BatchInsertSlots(context.Context, []*SlotRecord) error { return nil }
func (noopRecordStore) DeleteOldSlots(context.Context, int) error { return nil }

func newProgressManager(redis statusStore, db recordStore, recentThresholdSec int) *ProgressManager {
	if recentThresholdSec <= 0 {
		recentThresholdSec = 60
	}
	return &ProgressManager{
		redis:           redis,
		db:              db,
		buffer:          newSlotBuffer(),
		recentThreshold: time.Duration(recentThresholdSec) * time.Second,
		now:             time.Now,
	}
}

// ShouldProcessSlot 判断是否需要处理该 slot：
//   - block 是最近的（或未知 blockTime）直接处理；
//   - 否则先查 Redis，未命中再 fallback 到 DB，DB 命中时回写 Redis。
func (pm *ProgressManager) ShouldProcessSlot(ctx context.Context, slot uint64, blockTime int64) (bool, error) {
	if blockTime <= 0 || pm.now().Sub(time.Unix(blockTime, 0)) <= pm.recentThreshold {
		return true, nil
	}

	status, err := pm.redis.GetSlotStatus(ctx, slot)
	if err != nil {
		return false, err
	}
	if status == SlotProcessed || status == SlotInvalid {
		return false, nil
	}

	exists, err := pm.db.CheckSlotExists(ctx, slot)
	if err != nil {
		return false, err
	}
	if exists {
		if err := pm.redis.MarkSlotStatus(ctx, slot, SlotProcessed); err != nil {
			logger.Warnf("[Progress] redis backfill slot %d failed: %v", slot, err)
		}
		return false, nil
	}
	return true, nil
}

// MarkSlotStatus 标记 slot 的处理状态，同时更新 Redis 与 slotBuffer（供后续批量写入 DB）
func (pm *ProgressManager) MarkSlotStatus(ctx context.Context, slot uint64, source int16, blockTime int64, status SlotStatus) error {
	if status != SlotProcessed && status != SlotInvalid {
		return nil // SlotUnknown / SlotPending 不参与记录
	}
	if err := pm.redis.MarkSlotStatus(ctx, slot, status); err != nil {
		return err
	}

	pm.buffer.Add(&SlotRecord{
		Slot:      slot,
		Source:    source,
		BlockTime: blockTime,
		Status:    status,
	})
	return nil
}

// Flush 将缓冲区写入 DB，失败时记录丢弃（Redis 中已有状态）
func (pm *ProgressManager) Flush(ctx context.Context) {
	list := pm.buffer.Flush()
	if len(list) == 0 {
		return
	}
	if err := pm.db.BatchInsertSlots(ctx, list); err != nil {
		logger.Errorf("[Progress] flush %d slots failed: %v", len(list), err)
	}
}

// StartFlushLoop 定时 flush，阻塞直到 ctx 取消；退出前做最后一次 flush
func (pm *ProgressManager) StartFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pm.Flush(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			pm.Flush(ctx)
		}
	}
}

// StartGCLoop 后台定时清理 keepDays 天之前的记录
func (pm *ProgressManager) StartGCLoop(ctx context.Context, interval time.Duration, keepDays int) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := pm.db.DeleteOldSlots(ctx, keepDays); err != nil {
					logger.Warnf("[Progress] GC failed: %v", err)
				}
			}
		}
	}()
}

// SlotProcessor 区块元数据处理器：区块到达即标记 slot 已处理
type SlotProcessor struct {
	pm     *ProgressManager
	source int16
}

func NewSlotProcessor(pm *ProgressManager, source int16) *SlotProcessor {
	return &SlotProcessor{pm: pm, source: source}
}

func (p *SlotProcessor) Process(ctx context.Context, details *core.BlockDetails, m *metrics.MetricsCollection) error {
	var blockTime int64
	if details.BlockTime != nil {
		blockTime = *details.BlockTime
	}
	if err := p.pm.MarkSlotStatus(ctx, details.Slot, p.source, blockTime, SlotProcessed); err != nil {
		return err
	}
	m.IncrementCounter(metrics.ProgressSlotsMarked, 1, metrics.L("source", SourceName(p.source)))
	return nil
}
