// Package kafka 提供 Kafka 客户端封装
package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/pkg/config"
	"github.com/qiminjie89/frdsvc/pkg/logger"
)

// ErrNotConfigured broker/topic/group 未配置
var ErrNotConfigured = errors.New("kafka not configured")

// Consumer Kafka 消费者
type Consumer struct {
	cfg       config.KafkaConfig
	reader    *kafka.Reader
	connected atomic.Bool
}

// MessageHandler 消息处理函数
type MessageHandler func(msg *Message) error

// Message Kafka 消息
type Message struct {
	Key       []byte
	Value     []byte
	Partition int
	Offset    int64
}

// NewConsumer 创建 Kafka 消费者，配置不完整时返回 ErrNotConfigured
func NewConsumer(cfg config.KafkaConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, ErrNotConfigured
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 1e6,
		MaxWait:  time.Second,
	})

	c := &Consumer{
		cfg:    cfg,
		reader: reader,
	}
	c.connected.Store(true)
	return c, nil
}

// Start 启动消费循环，ctx 取消后返回
// 处理失败的消息同样提交 offset，不重复投递
func (c *Consumer) Start(ctx context.Context, handler MessageHandler) {
	logger.Info("kafka consumer started",
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.connected.Store(false)
			logger.Error("kafka fetch message failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		c.connected.Store(true)

		if err := handler(&Message{
			Key:       msg.Key,
			Value:     msg.Value,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		}); err != nil {
			logger.Warn("kafka message handler failed",
				zap.Error(err),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error("kafka commit failed", zap.Error(err))
		}
	}
}

// IsConnected 检查是否连接正常
func (c *Consumer) IsConnected() bool {
	return c.connected.Load()
}

// Close 关闭消费者
func (c *Consumer) Close() error {
	return c.reader.Close()
}
