package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sol-ingest/pkg/logger"
)

// pgxConn *pgxpool.Pool 与 pgx.Tx 均满足
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBProgressStore 管理 slot 的 DB 存储。
// 写入用于持久记录进度，服务恢复后可用；不做高频幂等判重，只作 Redis 未命中时的 fallback。
type DBProgressStore struct {
	db    pgxConn
	table string
}

const defaultTable = "progress_slot"

func NewDBProgressStore(db pgxConn, table string) *DBProgressStore {
	if table == "" {
		table = defaultTable
	}
	return &DBProgressStore{db: db, table: pgx.Identifier{table}.Sanitize()}
}

// EnsureTable 建表（幂等）
func (d *DBProgressStore) EnsureTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + d.table + ` (
		slot       BIGINT PRIMARY KEY,
		source     SMALLINT NOT NULL,
		block_time BIGINT NOT NULL,
		status     SMALLINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := d.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s failed: %w", d.table, err)
	}
	return nil
}

// CheckSlotExists 判定某 slot 是否已存在于 DB 中
func (d *DBProgressStore) CheckSlotExists(ctx context.Context, slot uint64) (bool, error) {
	var dummy int
	err := d.db.QueryRow(ctx, `SELECT 1 FROM `+d.table+` WHERE slot = $1`, int64(slot)).Scan(&dummy)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check slot exists error: %w", err)
	}
	return true, nil
}

const batchLimit = 1000

// BatchInsertSlots 按 batchLimit 分批写入；slot 冲突时仅更新 status 和 updated_at
func (d *DBProgressStore) BatchInsertSlots(ctx context.Context, slots []*SlotRecord) error {
	for i := 0; i < len(slots); i += batchLimit {
		end := min(i+batchLimit, len(slots))
		query, args := buildInsertQuery(d.table, slots[i:end])
		if _, err := d.db.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert %d slots failed: %w", end-i, err)
		}
	}
	return nil
}

func buildInsertQuery(table string, slots []*SlotRecord) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO `)
	sb.WriteString(table)
	sb.WriteString(` (slot, source, block_time, status, updated_at) VALUES `)

	args := make([]any, 0, len(slots)*4)
	for i, s := range slots {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,CURRENT_TIMESTAMP)", i*4+1, i*4+2, i*4+3, i*4+4)
		args = append(args, int64(s.Slot), s.Source, s.BlockTime, int16(s.Status))
	}
	sb.WriteString(` ON CONFLICT (slot) DO UPDATE SET status = EXCLUDED.status, updated_at = CURRENT_TIMESTAMP`)
	return sb.String(), args
}

// slotsPerDay 按每秒约 2.5 个 slot 估算
const slotsPerDay = 24 * 3600 * 5 / 2

// DeleteOldSlots 删除 keepDays 天之前的记录。为防止锁表和长事务，分批删除（每批最多 1000 条）。
func (d *DBProgressStore) DeleteOldSlots(ctx context.Context, keepDays int) error {
	var latest *int64
	if err := d.db.QueryRow(ctx, `SELECT MAX(slot) FROM `+d.table).Scan(&latest); err != nil {
		return fmt.Errorf("fetch latest slot failed: %w", err)
	}
	if latest == nil {
		return nil
	}

	safeSlot := *latest - int64(keepDays)*slotsPerDay
	if safeSlot <= 0 {
		return nil
	}

	// postgres 的 DELETE 不支持 LIMIT，借助 ctid 子查询分批
	query := `DELETE FROM ` + d.table + ` WHERE ctid IN (SELECT ctid FROM ` + d.table + ` WHERE slot < $1 LIMIT $2)`
	for {
		tag, err := d.db.Exec(ctx, query, safeSlot, batchLimit)
		if err != nil {
			return fmt.Errorf("delete old slots failed: %w", err)
		}
		n := tag.RowsAffected()
		if n == 0 {
			return nil
		}
		logger.Infof("[Progress] GC deleted %d old progress rows (slot < %d)", n, safeSlot)
	}
}
