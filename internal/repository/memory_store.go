package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore 内存记录存储，用于本地开发和测试
type MemoryStore struct {
	mu          sync.RWMutex
	broker      notify.Broker
	ideas       map[string]model.IdeaModel
	investments []model.InvestmentModel
	byTx        map[string]int
}

// NewMemoryStore 创建内存记录存储，broker 可以为 nil
func NewMemoryStore(broker notify.Broker) *MemoryStore {
	return &MemoryStore{
		broker: broker,
		ideas:  make(map[string]model.IdeaModel),
		byTx:   make(map[string]int),
	}
}

func (s *MemoryStore) publish(ctx context.Context, c Collection) {
	if s.broker == nil {
		return
	}
	if err := s.broker.Publish(context.WithoutCancel(ctx), string(c)); err != nil {
		logger.Warn("Failed to publish %s change: %v", c, err)
	}
}

func (s *MemoryStore) CreateIdea(ctx context.Context, idea *model.IdeaModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if idea.Id == "" {
		idea.Id = uuid.NewString()
	}
	if _, exists := s.ideas[idea.Id]; exists {
		s.mu.Unlock()
		return fmt.Errorf("idea %s already exists", idea.Id)
	}
	now := time.Now()
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = now
	}
	idea.UpdatedAt = now
	s.ideas[idea.Id] = *idea
	s.mu.Unlock()

	s.publish(ctx, CollectionIdeas)
	return nil
}

func (s *MemoryStore) GetIdea(ctx context.Context, id string) (*model.IdeaModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idea, ok := s.ideas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &idea, nil
}

func (s *MemoryStore) ListIdeas(ctx context.Context, query IdeaQuery) ([]model.IdeaModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	ideas := make([]model.IdeaModel, 0, len(s.ideas))
	for _, idea := range s.ideas {
		if query.OwnerAddress != "" && idea.OwnerAddress != query.OwnerAddress {
			continue
		}
		if len(query.Statuses) > 0 && !containsStatus(query.Statuses, idea.Status) {
			continue
		}
		ideas = append(ideas, idea)
	}
	s.mu.RUnlock()

	sort.SliceStable(ideas, func(i, j int) bool {
		if ideas[i].CreatedAt.Equal(ideas[j].CreatedAt) {
			return ideas[i].Id < ideas[j].Id
		}
		if query.Ascending {
			return ideas[i].CreatedAt.Before(ideas[j].CreatedAt)
		}
		return ideas[i].CreatedAt.After(ideas[j].CreatedAt)
	})
	return ideas, nil
}

func containsStatus(statuses []model.IdeaStatus, status model.IdeaStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *MemoryStore) UpdateIdeaStatus(ctx context.Context, id string, from, to model.IdeaStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	idea, ok := s.ideas[id]
	if !ok {
		s.mu.Unlock()
		return false, nil
	}
	if idea.Status != from {
		s.mu.Unlock()
		return false, nil
	}
	idea.Status = to
	idea.UpdatedAt = time.Now()
	s.ideas[id] = idea
	s.mu.Unlock()

	s.publish(ctx, CollectionIdeas)
	return true, nil
}

func (s *MemoryStore) CreateInvestment(ctx context.Context, investment *model.InvestmentModel) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.ideas[investment.IdeaId]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("idea %s: %w", investment.IdeaId, ErrNotFound)
	}
	if _, dup := s.byTx[investment.TransactionId]; dup {
		s.mu.Unlock()
		return ErrDuplicateTransaction
	}
	if investment.Id == "" {
		investment.Id = uuid.NewString()
	}
	if investment.CreatedAt.IsZero() {
		investment.CreatedAt = time.Now()
	}
	s.byTx[investment.TransactionId] = len(s.investments)
	s.investments = append(s.investments, *investment)
	s.mu.Unlock()

	s.publish(ctx, CollectionInvestments)
	return nil
}

func (s *MemoryStore) GetInvestmentByTransaction(ctx context.Context, transactionId string) (*model.InvestmentModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byTx[transactionId]
	if !ok {
		return nil, ErrNotFound
	}
	investment := s.investments[idx]
	return &investment, nil
}

func (s *MemoryStore) ListInvestments(ctx context.Context, ideaId string) ([]model.InvestmentModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	investments := make([]model.InvestmentModel, 0)
	for _, investment := range s.investments {
		if investment.IdeaId == ideaId {
			investments = append(investments, investment)
		}
	}
	// 与 GormStore 相同的排序：投资时间升序，同一时间按 ID
	sort.Slice(investments, func(i, j int) bool {
		if !investments[i].InvestedAt.Equal(investments[j].InvestedAt) {
			return investments[i].InvestedAt.Before(investments[j].InvestedAt)
		}
		return investments[i].Id < investments[j].Id
	})
	return investments, nil
}

func (s *MemoryStore) SumInvestments(ctx context.Context, ideaId string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, investment := range s.investments {
		if investment.IdeaId == ideaId {
			total = total.Add(investment.Amount)
		}
	}
	return total, nil
}

func (s *MemoryStore) Subscribe(collection Collection, onChange func()) func() {
	if s.broker == nil {
		return func() {}
	}
	return s.broker.Subscribe(string(collection), onChange)
}
