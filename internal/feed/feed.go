package feed

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/repository"
)

// Reconciler 读时对账，由 funding.Engine 实现
type Reconciler interface {
	Reconcile(ctx context.Context, idea *model.IdeaModel) (*model.IdeaModel, error)
}

// FetchError 读取记录失败，缓存保持上一次的结果
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch ideas: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Feed 想法列表的响应式缓存。存储是唯一的事实来源，每次变更都完整重读。
type Feed struct {
	store      repository.IdeaStore
	notifier   Notifier
	reconciler Reconciler

	// 串行化刷新
	refreshMu sync.Mutex

	mu          sync.RWMutex
	ideas       []model.IdeaModel
	lastErr     error
	refreshedAt time.Time
	watchers    map[int]chan []model.IdeaModel
	nextWatch   int

	trigger chan struct{}
	started atomic.Bool
}

// Notifier 记录变更订阅
type Notifier interface {
	Subscribe(collection repository.Collection, onChange func()) (unsubscribe func())
}

// New 创建想法列表缓存
func New(store repository.Store, reconciler Reconciler) *Feed {
	return &Feed{
		store:      store,
		notifier:   store,
		reconciler: reconciler,
		watchers:   make(map[int]chan []model.IdeaModel),
		trigger:    make(chan struct{}, 1),
	}
}

// Refresh 按创建时间倒序读取全部想法并逐个对账过期状态。
// 失败时返回 *FetchError 和上一次缓存的结果。
func (f *Feed) Refresh(ctx context.Context) ([]model.IdeaModel, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	ideas, err := f.store.ListIdeas(ctx, repository.IdeaQuery{})
	if err != nil {
		return f.fail(err)
	}

	view := make([]model.IdeaModel, 0, len(ideas))
	for i := range ideas {
		idea, err := f.reconciler.Reconcile(ctx, &ideas[i])
		if err != nil {
			return f.fail(err)
		}
		view = append(view, *idea)
	}

	f.mu.Lock()
	f.ideas = view
	f.lastErr = nil
	f.refreshedAt = time.Now()
	for _, ch := range f.watchers {
		offer(ch, cloneIdeas(view))
	}
	f.mu.Unlock()

	logger.Debug("Feed refreshed: %d ideas", len(view))
	return cloneIdeas(view), nil
}

func (f *Feed) fail(err error) ([]model.IdeaModel, error) {
	fe := &FetchError{Err: err}
	logger.Warn("Feed refresh failed, keeping cached view: %v", err)

	f.mu.Lock()
	f.lastErr = fe
	view := cloneIdeas(f.ideas)
	f.mu.Unlock()
	return view, fe
}

// Snapshot 当前缓存
func (f *Feed) Snapshot() []model.IdeaModel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cloneIdeas(f.ideas)
}

// LastError 最近一次刷新的错误，成功后清空
func (f *Feed) LastError() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastErr
}

// RefreshedAt 最近一次成功刷新的时间
func (f *Feed) RefreshedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshedAt
}

// Watch 订阅刷新结果。通道只保留最新的一份视图。
func (f *Feed) Watch() (<-chan []model.IdeaModel, func()) {
	ch := make(chan []model.IdeaModel, 1)

	f.mu.Lock()
	id := f.nextWatch
	f.nextWatch++
	f.watchers[id] = ch
	if f.ideas != nil {
		ch <- cloneIdeas(f.ideas)
	}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.watchers, id)
			f.mu.Unlock()
		})
	}
}

// Start 订阅想法和投资的变更，任何变更都触发一次完整刷新。ctx 取消后停止。
func (f *Feed) Start(ctx context.Context) {
	if !f.started.CompareAndSwap(false, true) {
		logger.Warn("Feed already started")
		return
	}

	unsubIdeas := f.notifier.Subscribe(repository.CollectionIdeas, f.Invalidate)
	unsubInvestments := f.notifier.Subscribe(repository.CollectionInvestments, f.Invalidate)

	go func() {
		defer unsubIdeas()
		defer unsubInvestments()

		if _, err := f.Refresh(ctx); err != nil {
			logger.Error("Initial feed refresh failed: %v", err)
		}
		for {
			select {
			case <-ctx.Done():
				logger.Info("Feed stopped")
				return
			case <-f.trigger:
				_, _ = f.Refresh(ctx)
			}
		}
	}()

	logger.Info("Feed started")
}

// Invalidate 请求一次刷新，多次请求会合并
func (f *Feed) Invalidate() {
	select {
	case f.trigger <- struct{}{}:
	default:
	}
}

func offer(ch chan []model.IdeaModel, view []model.IdeaModel) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- view:
	default:
	}
}

func cloneIdeas(ideas []model.IdeaModel) []model.IdeaModel {
	if ideas == nil {
		return nil
	}
	out := make([]model.IdeaModel, len(ideas))
	copy(out, ideas)
	return out
}
