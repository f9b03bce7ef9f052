package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/blues/ideafund/internal/logger"
	"github.com/redis/go-redis/v9"
)

// RedisBroker 通过 redis 发布订阅在多个实例之间转发通知，
// 本实例的回调仍由 LocalBroker 分发
type RedisBroker struct {
	client *redis.Client
	local  *LocalBroker
	prefix string
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisBroker 创建 redis 通知器并开始监听
func NewRedisBroker(ctx context.Context, client *redis.Client, prefix string, local *LocalBroker) (*RedisBroker, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := &RedisBroker{
		client: client,
		local:  local,
		prefix: prefix + ":",
		done:   make(chan struct{}),
	}
	b.pubsub = client.PSubscribe(ctx, b.prefix+"*")
	go b.loop()

	logger.Info("Redis notify broker listening on %s*", b.prefix)
	return b, nil
}

func (b *RedisBroker) loop() {
	defer close(b.done)
	for msg := range b.pubsub.Channel() {
		topic := strings.TrimPrefix(msg.Channel, b.prefix)
		if err := b.local.Publish(context.Background(), topic); err != nil {
			logger.Warn("Failed to fan out redis notification %s: %v", topic, err)
		}
	}
}

// Publish 发布到 redis，由所有实例（包括本实例）的监听循环分发
func (b *RedisBroker) Publish(ctx context.Context, topic string) error {
	if err := b.client.Publish(ctx, b.prefix+topic, topic).Err(); err != nil {
		return fmt.Errorf("failed to publish %s notification: %w", topic, err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(topic string, fn func()) func() {
	return b.local.Subscribe(topic, fn)
}

// Close 关闭订阅和连接
func (b *RedisBroker) Close() error {
	err := b.pubsub.Close()
	<-b.done
	if cerr := b.client.Close(); err == nil {
		err = cerr
	}
	b.local.Close()
	return err
}
