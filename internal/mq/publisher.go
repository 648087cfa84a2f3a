package mq

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"sol-ingest/pkg/logger"
)

// Publisher 事件发布能力，返回成功发送的条数
type Publisher interface {
	Topic() string
	Publish(ctx context.Context, events []*Event) (int, error)
}

// KafkaPublisher 将事件编码后按 Key 哈希分区写入单个 topic
type KafkaPublisher struct {
	producer   Producer
	topic      string
	partitions uint32
	timeout    time.Duration
}

func NewKafkaPublisher(producer Producer, topic string, partitions int, timeout time.Duration) *KafkaPublisher {
	if partitions <= 0 {
		partitions = 1
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaPublisher{
		producer:   producer,
		topic:      topic,
		partitions: uint32(partitions),
		timeout:    timeout,
	}
}

func (p *KafkaPublisher) Topic() string { return p.topic }

func (p *KafkaPublisher) Publish(ctx context.Context, events []*Event) (int, error) {
	jobs, err := p.buildJobs(events)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	ok, failed := SendKafkaJobs(ctx, p.producer, jobs, p.timeout)
	if len(failed) > 0 {
		logger.Warnf("[mq] topic=%s 发送失败 %d/%d 条, 首个错误: %v", p.topic, len(failed), len(jobs), failed[0].Err)
		return len(ok), fmt.Errorf("publish to %s: %d of %d failed: %w", p.topic, len(failed), len(jobs), failed[0].Err)
	}
	return len(ok), nil
}

func (p *KafkaPublisher) buildJobs(events []*Event) ([]*KafkaJob, error) {
	jobs := make([]*KafkaJob, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		payload := e.Payload
		if payload == nil {
			payload = &structpb.Struct{}
		}
		value, err := EncodeEvent(e.Type, payload)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, &KafkaJob{
			Topic:     p.topic,
			Partition: int32(PartitionHashBytes(e.Key, p.partitions)),
			Key:       e.Key,
			Value:     value,
		})
	}
	return jobs, nil
}
