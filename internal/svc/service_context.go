package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"sol-ingest/internal/config"
	"sol-ingest/internal/logic/progress"
	"sol-ingest/internal/metrics"
	"sol-ingest/internal/mq"
	"sol-ingest/pkg/logger"
	"sol-ingest/pkg/telemetry"
)

// ServiceContext 进程级共享资源，按配置按需创建；未配置的依赖保持 nil
type ServiceContext struct {
	Config *config.Config

	MetricsBackends []metrics.Metrics
	Prometheus      *metrics.PrometheusMetrics

	Redis    *redis.Client
	DB       *pgxpool.Pool
	Producer *kafka.Producer

	TokenPublisher mq.Publisher
	EventPublisher mq.Publisher

	ProgressManager *progress.ProgressManager

	shutdownTelemetry telemetry.ShutdownFunc
}

// NewServiceContext 创建服务上下文，任一依赖初始化失败都会释放已创建的资源
func NewServiceContext(ctx context.Context, c *config.Config) (_ *ServiceContext, err error) {
	s := &ServiceContext{Config: c}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// 1. 指标
	if err = s.initMetrics(ctx); err != nil {
		return nil, err
	}

	// 2. Kafka 生产者
	if c.KafkaProducer.Brokers != "" {
		if s.Producer, err = mq.NewKafkaProducer(c.KafkaProducer.ToKafkaOption()); err != nil {
			logger.Errorf("Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		timeout := time.Duration(c.KafkaProducer.SendTimeoutMs) * time.Millisecond
		if topic := c.KafkaProducer.Topics.Token; topic != "" {
			s.TokenPublisher = mq.NewKafkaPublisher(s.Producer, topic, c.KafkaProducer.Partitions.Token, timeout)
		}
		if topic := c.KafkaProducer.Topics.Event; topic != "" {
			s.EventPublisher = mq.NewKafkaPublisher(s.Producer, topic, c.KafkaProducer.Partitions.Event, timeout)
		}
	}

	// 3. 进度管理（Redis + PostgreSQL）
	if c.RedisAddr != "" {
		if err = s.initProgress(ctx); err != nil {
			return nil, err
		}
	}

	logger.Infof("服务上下文初始化完成, kafka=%t, progress=%t, metrics=%d",
		s.Producer != nil, s.ProgressManager != nil, len(s.MetricsBackends))
	return s, nil
}

func (s *ServiceContext) initMetrics(ctx context.Context) error {
	mc := s.Config.MetricsConf
	if mc.ListenAddr != "" {
		s.Prometheus = metrics.NewPrometheusMetrics(mc.Namespace)
		s.MetricsBackends = append(s.MetricsBackends, s.Prometheus)
	}
	if mc.Otel {
		mp, shutdown, err := telemetry.Init(ctx, mc.ServiceName)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		s.shutdownTelemetry = shutdown
		s.MetricsBackends = append(s.MetricsBackends, metrics.NewOtelMetrics(mp))
	}
	if mc.Log {
		s.MetricsBackends = append(s.MetricsBackends, metrics.NewLogMetrics())
	}
	return nil
}

func (s *ServiceContext) initProgress(ctx context.Context) error {
	c := s.Config
	s.Redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.RedisAddr, err)
	}
	redisStore := progress.NewRedisProgressStore(s.Redis, c.ProgressConf.Namespace, 0)

	var dbStore *progress.DBProgressStore
	if c.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, c.PostgresDSN)
		if err != nil {
			logger.Errorf("PostgreSQL 连接失败: %v", err)
			return err
		}
		s.DB = pool
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping: %w", err)
		}
		dbStore = progress.NewDBProgressStore(pool, c.ProgressConf.Table)
		if err := dbStore.EnsureTable(ctx); err != nil {
			return err
		}
	}

	s.ProgressManager = progress.NewProgressManager(redisStore, dbStore, c.ProgressConf.RecentThresholdSec)
	return nil
}

// Close 关闭服务上下文中的资源
func (s *ServiceContext) Close() {
	if s.Producer != nil {
		// 等待未确认的消息最多 5 秒
		if remaining := s.Producer.Flush(5_000); remaining > 0 {
			logger.Warnf("Kafka producer 关闭时仍有 %d 条消息未确认", remaining)
		}
		s.Producer.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Warnf("关闭 Redis 失败: %v", err)
		}
	}
	if s.shutdownTelemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shutdownTelemetry(ctx); err != nil {
			logger.Warnf("关闭 telemetry 失败: %v", err)
		}
	}
}
