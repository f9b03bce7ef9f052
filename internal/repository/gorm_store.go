package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStore 基于 gorm 的记录存储
type GormStore struct {
	db     *gorm.DB
	broker notify.Broker
}

// NewGormStore 创建 gorm 记录存储
func NewGormStore(db *gorm.DB, broker notify.Broker) *GormStore {
	return &GormStore{db: db, broker: broker}
}

func (s *GormStore) publish(ctx context.Context, c Collection) {
	if err := s.broker.Publish(context.WithoutCancel(ctx), string(c)); err != nil {
		logger.Warn("Failed to publish %s change: %v", c, err)
	}
}

// CreateIdea 创建想法
func (s *GormStore) CreateIdea(ctx context.Context, idea *model.IdeaModel) error {
	if idea.Id == "" {
		idea.Id = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(idea).Error; err != nil {
		return fmt.Errorf("failed to create idea: %w", err)
	}
	s.publish(ctx, CollectionIdeas)
	return nil
}

// GetIdea 获取想法
func (s *GormStore) GetIdea(ctx context.Context, id string) (*model.IdeaModel, error) {
	var idea model.IdeaModel
	if err := s.db.WithContext(ctx).First(&idea, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get idea %s: %w", id, err)
	}
	return &idea, nil
}

// ListIdeas 查询想法列表
func (s *GormStore) ListIdeas(ctx context.Context, query IdeaQuery) ([]model.IdeaModel, error) {
	q := s.db.WithContext(ctx).Model(&model.IdeaModel{})
	if len(query.Statuses) > 0 {
		q = q.Where("status IN ?", query.Statuses)
	}
	if query.OwnerAddress != "" {
		q = q.Where("owner_address = ?", query.OwnerAddress)
	}
	if query.Ascending {
		q = q.Order("created_at ASC")
	} else {
		q = q.Order("created_at DESC")
	}

	var ideas []model.IdeaModel
	if err := q.Find(&ideas).Error; err != nil {
		return nil, fmt.Errorf("failed to list ideas: %w", err)
	}
	return ideas, nil
}

// UpdateIdeaStatus 条件更新状态，只有当前状态为 from 时才会更新
func (s *GormStore) UpdateIdeaStatus(ctx context.Context, id string, from, to model.IdeaStatus) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	res := s.db.WithContext(ctx).
		Model(&model.IdeaModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update idea %s status to %s: %w", id, to, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	s.publish(ctx, CollectionIdeas)
	return true, nil
}

// CreateInvestment 写入投资记录，想法必须存在，交易ID唯一
func (s *GormStore) CreateInvestment(ctx context.Context, investment *model.InvestmentModel) error {
	if investment.Id == "" {
		investment.Id = uuid.NewString()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.IdeaModel{}).Where("id = ?", investment.IdeaId).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return tx.Create(investment).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTransaction
		}
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("idea %s: %w", investment.IdeaId, ErrNotFound)
		}
		return fmt.Errorf("failed to create investment: %w", err)
	}

	s.publish(ctx, CollectionInvestments)
	return nil
}

// GetInvestmentByTransaction 按交易ID获取投资记录
func (s *GormStore) GetInvestmentByTransaction(ctx context.Context, transactionId string) (*model.InvestmentModel, error) {
	var investment model.InvestmentModel
	if err := s.db.WithContext(ctx).Where("transaction_id = ?", transactionId).First(&investment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get investment for transaction %s: %w", transactionId, err)
	}
	return &investment, nil
}

// ListInvestments 获取想法的投资记录
func (s *GormStore) ListInvestments(ctx context.Context, ideaId string) ([]model.InvestmentModel, error) {
	var investments []model.InvestmentModel
	if err := s.db.WithContext(ctx).
		Where("idea_id = ?", ideaId).
		Order("invested_at ASC, id ASC").
		Find(&investments).Error; err != nil {
		return nil, fmt.Errorf("failed to list investments for idea %s: %w", ideaId, err)
	}
	return investments, nil
}

// SumInvestments 统计想法的投资总额
func (s *GormStore) SumInvestments(ctx context.Context, ideaId string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.WithContext(ctx).
		Model(&model.InvestmentModel{}).
		Where("idea_id = ?", ideaId).
		Select("COALESCE(SUM(amount), 0)").
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum investments for idea %s: %w", ideaId, err)
	}
	return total, nil
}

// Subscribe 订阅集合变更
func (s *GormStore) Subscribe(collection Collection, onChange func()) func() {
	return s.broker.Subscribe(string(collection), onChange)
}
