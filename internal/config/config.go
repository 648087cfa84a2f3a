package config

import (
	"time"

	"sol-ingest/internal/logic/datasource/rpcblock"
	"sol-ingest/internal/logic/datasource/yellowstone"
	"sol-ingest/internal/mq"
	"sol-ingest/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format" validate:"omitempty,oneof=console json"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`                                         // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// PipelineConfig 调度循环配置
type PipelineConfig struct {
	ChannelBufferSize      int    `yaml:"channel_buffer_size" validate:"gte=0"`
	ShutdownStrategy       string `yaml:"shutdown_strategy" validate:"omitempty,oneof=immediate process_pending"`
	MetricsFlushIntervalMs int    `yaml:"metrics_flush_interval_ms" validate:"gte=0"`
}

// MetricsConfig 指标输出配置
type MetricsConfig struct {
	ListenAddr  string `yaml:"listen_addr"`  // prometheus /metrics 监听地址，为空则不启动
	Namespace   string `yaml:"namespace"`    // prometheus 指标前缀
	Otel        bool   `yaml:"otel"`         // 是否通过 OTLP 导出（读取标准 OTEL_* 环境变量）
	ServiceName string `yaml:"service_name"` // OTel resource 服务名
	Log         bool   `yaml:"log"`          // 是否在 flush 时把指标写入日志
}

// YellowstoneConfig Geyser gRPC 订阅配置
type YellowstoneConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint" validate:"required_if=Enabled true"` // gRPC 服务端地址
	XToken   string `yaml:"x_token"`                                      // x-token 认证
	Insecure bool   `yaml:"insecure"`

	// 应用级逻辑心跳（ping）配置
	StreamPingIntervalSec int `yaml:"stream_ping_interval_sec"` // 应用层 ping 心跳间隔（秒）

	// gRPC Keepalive 底层连接检测配置
	KeepalivePingIntervalSec int `yaml:"keepalive_ping_interval_sec"` // 底层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `yaml:"keepalive_ping_timeout_sec"`  // 底层 keepalive 超时（秒）

	// gRPC 窗口大小调优（用于大数据流推送）
	InitialWindowSize     int32 `yaml:"initial_window_size"`      // 单流窗口大小（字节）
	InitialConnWindowSize int32 `yaml:"initial_conn_window_size"` // 整体连接窗口大小（字节）

	// 消息体大小限制
	MaxCallSendMsgSize int `yaml:"max_call_send_msg_size"`
	MaxCallRecvMsgSize int `yaml:"max_call_recv_msg_size"`

	ReconnectIntervalSec int `yaml:"reconnect_interval_sec"` // 重连最小间隔（秒）
	SendTimeoutSec       int `yaml:"send_timeout_sec"`       // 发送超时（秒）

	Commitment string `yaml:"commitment" validate:"omitempty,oneof=processed confirmed finalized"`
	BlocksMeta bool   `yaml:"blocks_meta"`

	Accounts map[string]struct {
		Account []string `yaml:"account"`
		Owner   []string `yaml:"owner"`
	} `yaml:"accounts"`

	Transactions map[string]struct {
		Vote            *bool    `yaml:"vote"`
		Failed          *bool    `yaml:"failed"`
		AccountInclude  []string `yaml:"account_include"`
		AccountExclude  []string `yaml:"account_exclude"`
		AccountRequired []string `yaml:"account_required"`
	} `yaml:"transactions"`
}

func (c *YellowstoneConfig) ToOptions() yellowstone.Options {
	opt := yellowstone.Options{
		Endpoint:              c.Endpoint,
		XToken:                c.XToken,
		Insecure:              c.Insecure,
		StreamPingInterval:    seconds(c.StreamPingIntervalSec),
		KeepalivePingInterval: seconds(c.KeepalivePingIntervalSec),
		KeepalivePingTimeout:  seconds(c.KeepalivePingTimeoutSec),
		InitialWindowSize:     c.InitialWindowSize,
		InitialConnWindowSize: c.InitialConnWindowSize,
		MaxCallSendMsgSize:    c.MaxCallSendMsgSize,
		MaxCallRecvMsgSize:    c.MaxCallRecvMsgSize,
		ReconnectInterval:     seconds(c.ReconnectIntervalSec),
		SendTimeout:           seconds(c.SendTimeoutSec),
		Commitment:            c.Commitment,
		BlocksMeta:            c.BlocksMeta,
	}
	if len(c.Accounts) > 0 {
		opt.Accounts = make(map[string]yellowstone.AccountFilter, len(c.Accounts))
		for name, f := range c.Accounts {
			opt.Accounts[name] = yellowstone.AccountFilter{Account: f.Account, Owner: f.Owner}
		}
	}
	if len(c.Transactions) > 0 {
		opt.Transactions = make(map[string]yellowstone.TransactionFilter, len(c.Transactions))
		for name, f := range c.Transactions {
			opt.Transactions[name] = yellowstone.TransactionFilter{
				Vote:            f.Vote,
				Failed:          f.Failed,
				AccountInclude:  f.AccountInclude,
				AccountExclude:  f.AccountExclude,
				AccountRequired: f.AccountRequired,
			}
		}
	}
	return opt
}

// RpcCrawlerConfig RPC 区块爬取配置，EndSlot 为 0 表示持续跟随
type RpcCrawlerConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	StartSlot      uint64 `yaml:"start_slot"`
	EndSlot        uint64 `yaml:"end_slot" validate:"omitempty,gtefield=StartSlot"`
	BatchSize      uint64 `yaml:"batch_size"`
	PollIntervalMs int    `yaml:"poll_interval_ms" validate:"gte=0"`
	MaxRetries     uint   `yaml:"max_retries"`
	Concurrency    int    `yaml:"concurrency" validate:"gte=0,lte=64"`
	RpcTimeoutMs   int    `yaml:"rpc_timeout_ms" validate:"gte=0"`
}

func (c *RpcCrawlerConfig) ToOptions() rpcblock.Options {
	return rpcblock.Options{
		Endpoint:     c.Endpoint,
		StartSlot:    c.StartSlot,
		EndSlot:      c.EndSlot,
		BatchSize:    c.BatchSize,
		PollInterval: millis(c.PollIntervalMs),
		MaxRetries:   c.MaxRetries,
		Concurrency:  c.Concurrency,
		RpcTimeout:   millis(c.RpcTimeoutMs),
	}
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置，Brokers 为空时不发布事件
type KafkaProducerConfig struct {
	Brokers   string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	BatchSize int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs  int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）

	Topics struct {
		Token string `yaml:"token"` // SPL Token 转账/铸造/销毁事件
		Event string `yaml:"event"` // 交易、发币等综合事件
	} `yaml:"topics"`

	Partitions struct {
		Token int `yaml:"token"`
		Event int `yaml:"event"`
	} `yaml:"partitions"`

	SendTimeoutMs int `yaml:"send_timeout_ms"` // 单条事件发送到 Kafka 并等待 ack 的超时时间
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics: []mq.TopicSpec{
			{Topic: c.Topics.Token, Partitions: c.Partitions.Token},
			{Topic: c.Topics.Event, Partitions: c.Partitions.Event},
		},
	}
}

// ProgressConfig 表示索引器中的进度管理配置
type ProgressConfig struct {
	Namespace          string `yaml:"namespace"`            // redis key 命名空间
	RecentThresholdSec int    `yaml:"recent_threshold_sec"` // 判定为“近期 block”的时间阈值（秒）
	FlushIntervalMs    int    `yaml:"flush_interval_ms"`    // 已处理 slot 批量落库间隔
	Table              string `yaml:"table"`
	KeepDays           int    `yaml:"keep_days"` // 保留最近多少天的 slot 记录，0 表示不清理
}

// Config 是主配置结构体，用于驱动索引器服务
type Config struct {
	LogConf       LogConfig           `yaml:"logger"`
	PipelineConf  PipelineConfig      `yaml:"pipeline"`
	MetricsConf   MetricsConfig       `yaml:"metrics"`
	Yellowstone   YellowstoneConfig   `yaml:"yellowstone"`
	RpcCrawler    RpcCrawlerConfig    `yaml:"rpc_crawler"`
	KafkaProducer KafkaProducerConfig `yaml:"kafka_producer"`
	ProgressConf  ProgressConfig      `yaml:"progress"`

	RedisAddr   string `yaml:"redis_addr"`   // Redis 地址，为空则不启用进度管理
	PostgresDSN string `yaml:"postgres_dsn"` // PostgreSQL 数据源
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
