package pipeline

import (
	"errors"
	"fmt"

	"sol-ingest/internal/logic/core"
)

var (
	ErrNoDatasource      = errors.New("pipeline has no datasource")
	ErrMissingUpdateKind = errors.New("no datasource produces a required update kind")
)

// ConfigError 构建期配置错误：已注册某类 pipe，但没有任何 datasource 声明能产生对应的更新类型
type ConfigError struct {
	Kind  core.UpdateKind
	Pipes []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pipeline config: no datasource produces %s updates (required by pipes %v)", e.Kind, e.Pipes)
}

func (e *ConfigError) Unwrap() error {
	return ErrMissingUpdateKind
}
