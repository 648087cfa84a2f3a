package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "progress:slot"
	defaultTTL       = 7 * 24 * time.Hour
)

// RedisProgressStore 管理 Redis 中的 slot 状态记录（幂等控制）
type RedisProgressStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisProgressStore namespace 区分不同 pipeline（例如 "pumpfun"），为空则共用默认前缀
func NewRedisProgressStore(rdb redis.Cmdable, namespace string, ttl time.Duration) *RedisProgressStore {
	prefix := defaultKeyPrefix
	if namespace != "" {
		prefix = "progress:" + namespace + ":slot"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisProgressStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *RedisProgressStore) key(slot uint64) string {
	return fmt.Sprintf("%s:%d", r.prefix, slot)
}

// GetSlotStatus 获取 slot 的状态（Unknown / Processed / Invalid / Pending）
func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, r.key(slot)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return SlotUnknown, nil
	case err != nil:
		return SlotUnknown, fmt.Errorf("redis get error: %w", err)
	default:
		return parseSlotStatus(val), nil
	}
}

func parseSlotStatus(val int) SlotStatus {
	switch SlotStatus(val) {
	case SlotProcessed, SlotInvalid, SlotPending:
		return SlotStatus(val)
	default:
		return SlotUnknown // 容错处理
	}
}

// MarkSlotStatus 设置 slot 的状态
func (r *RedisProgressStore) MarkSlotStatus(ctx context.Context, slot uint64, status SlotStatus) error {
	return r.rdb.Set(ctx, r.key(slot), int(status), r.ttl).Err()
}

func (r *RedisProgressStore) MarkSlotProcessed(ctx context.Context, slot uint64) error {
	return r.MarkSlotStatus(ctx, slot, SlotProcessed)
}

func (r *RedisProgressStore) MarkSlotInvalid(ctx context.Context, slot uint64) error {
	return r.MarkSlotStatus(ctx, slot, SlotInvalid)
}
