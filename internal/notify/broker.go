package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/blues/ideafund/internal/logger"
	"github.com/panjf2000/ants/v2"
)

// Broker 集合变更通知。通知只携带主题，不携带数据，订阅方需要自行重新读取。
type Broker interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(topic string, fn func()) (unsubscribe func())
	Close() error
}

// LocalBroker 进程内通知，回调通过协程池异步执行，不保证顺序
type LocalBroker struct {
	mu     sync.RWMutex
	pool   *ants.Pool
	nextId int
	subs   map[string]map[int]func()
}

// NewLocalBroker 创建进程内通知器
func NewLocalBroker(poolSize int) (*LocalBroker, error) {
	if poolSize <= 0 {
		poolSize = 16
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create notify pool: %w", err)
	}
	return &LocalBroker{
		pool: pool,
		subs: make(map[string]map[int]func()),
	}, nil
}

// Subscribe 订阅主题
func (b *LocalBroker) Subscribe(topic string, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextId++
	id := b.nextId
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func())
	}
	b.subs[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}
}

// Publish 通知主题的所有订阅者
func (b *LocalBroker) Publish(_ context.Context, topic string) error {
	b.mu.RLock()
	listeners := make([]func(), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		listeners = append(listeners, fn)
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn := fn
		if err := b.pool.Submit(fn); err != nil {
			logger.Error("Failed to dispatch %s notification: %v", topic, err)
			return fmt.Errorf("failed to dispatch %s notification: %w", topic, err)
		}
	}
	return nil
}

// Close 释放协程池
func (b *LocalBroker) Close() error {
	b.pool.Release()
	return nil
}
