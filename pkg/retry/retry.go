// Package retry 对 avast/retry-go 的简单封装：指数退避 + ctx 取消 + 失败日志
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"

	"sol-ingest/pkg/logger"
)

// Retry 带重试地执行 operation，operation 需要幂等
type Retry interface {
	Execute(ctx context.Context, operation func() error) error
}

type config struct {
	attempts    uint
	delay       time.Duration
	maxDelay    time.Duration
	lastErrOnly bool
	tag         string // 日志前缀，为空则不打印重试日志
}

type Option func(*config)

type retrier struct {
	cfg config
}

var _ Retry = (*retrier)(nil)

// New 默认 3 次尝试，初始间隔 300ms，最大间隔 5s，只返回最后一次错误
func New(opts ...Option) Retry {
	cfg := config{
		attempts:    3,
		delay:       300 * time.Millisecond,
		maxDelay:    5 * time.Second,
		lastErrOnly: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &retrier{cfg: cfg}
}

func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	options := []retrygo.Option{
		retrygo.Attempts(r.cfg.attempts),
		retrygo.Delay(r.cfg.delay),
		retrygo.MaxDelay(r.cfg.maxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(r.cfg.lastErrOnly),
		retrygo.Context(ctx),
	}
	if r.cfg.tag != "" {
		tag := r.cfg.tag
		options = append(options, retrygo.OnRetry(func(n uint, err error) {
			logger.Warnf("[%s] 第 %d 次尝试失败: %v", tag, n+1, err)
		}))
	}
	return retrygo.Do(operation, options...)
}

// Unrecoverable 包装后的错误不再重试
func Unrecoverable(err error) error {
	return retrygo.Unrecoverable(err)
}

func WithAttempts(n uint) Option {
	return func(c *config) { c.attempts = n }
}

func WithDelay(d time.Duration) Option {
	return func(c *config) { c.delay = d }
}

func WithMaxDelay(d time.Duration) Option {
	return func(c *config) { c.maxDelay = d }
}

// WithLastErrorOnly false 时返回所有尝试的错误（retry-go 的 Error 列表）
func WithLastErrorOnly(b bool) Option {
	return func(c *config) { c.lastErrOnly = b }
}

// WithLogTag 每次失败时以 [tag] 打印警告日志
func WithLogTag(tag string) Option {
	return func(c *config) { c.tag = tag }
}
