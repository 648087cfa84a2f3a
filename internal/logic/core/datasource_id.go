package core

import "github.com/google/uuid"

// DatasourceID 标识 Update 的来源，仅用于分发过滤；不同来源之间不保证顺序
type DatasourceID string

// NewDatasourceID 使用显式名称构造 ID
func NewDatasourceID(name string) DatasourceID {
	return DatasourceID(name)
}

// NewUniqueDatasourceID 未指定名称时生成随机 ID
func NewUniqueDatasourceID() DatasourceID {
	return DatasourceID(uuid.NewString())
}

func (id DatasourceID) String() string {
	return string(id)
}
