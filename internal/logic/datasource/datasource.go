package datasource

import (
	"context"
	"slices"

	"sol-ingest/internal/logic/core"
	"sol-ingest/internal/metrics"
)

// Envelope 队列中的一条更新及其来源
type Envelope struct {
	Update core.Update
	ID     core.DatasourceID
}

// Datasource 更新来源。
//
// Consume 持续产生更新并通过 sender 送入 pipeline 队列，直到数据耗尽、ctx 取消或出错；
// ctx 取消后必须尽快返回。UpdateKinds 声明该来源可能产生的全部更新类型，pipeline 构建时据此校验。
type Datasource interface {
	Consume(ctx context.Context, id core.DatasourceID, sender chan<- Envelope, m *metrics.MetricsCollection) error
	UpdateKinds() []core.UpdateKind
}

// Send 将更新送入队列，队列满时阻塞直到有空位或 ctx 取消。
// 返回 false 表示 ctx 已取消，调用方应停止生产。
func Send(ctx context.Context, sender chan<- Envelope, update core.Update, id core.DatasourceID) bool {
	select {
	case <-ctx.Done():
		return false
	case sender <- Envelope{Update: update, ID: id}:
		return true
	}
}

// Produces 判断 ds 是否声明了 kind
func Produces(ds Datasource, kind core.UpdateKind) bool {
	return slices.Contains(ds.UpdateKinds(), kind)
}
