package repository

import (
	"context"
	"errors"

	"github.com/blues/ideafund/internal/model"
	"github.com/shopspring/decimal"
)

// Collection 记录集合，同时作为变更通知的主题
type Collection string

const (
	CollectionIdeas       Collection = "ideas"
	CollectionInvestments Collection = "investments"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateTransaction is returned when an investment with the same transaction id already exists.
	ErrDuplicateTransaction = errors.New("investment for transaction already recorded")

	// ErrInvalidTransition is returned for status updates the idea state machine does not allow.
	ErrInvalidTransition = errors.New("invalid idea status transition")
)

// IdeaQuery 想法查询条件，默认按创建时间倒序
type IdeaQuery struct {
	Statuses     []model.IdeaStatus
	OwnerAddress string
	Ascending    bool
}

// IdeaStore defines idea persistence.
type IdeaStore interface {
	CreateIdea(ctx context.Context, idea *model.IdeaModel) error
	GetIdea(ctx context.Context, id string) (*model.IdeaModel, error)
	ListIdeas(ctx context.Context, query IdeaQuery) ([]model.IdeaModel, error)

	// UpdateIdeaStatus atomically moves an idea from one status to another.
	// It reports false when the idea is no longer in the from status.
	UpdateIdeaStatus(ctx context.Context, id string, from, to model.IdeaStatus) (bool, error)
}

// InvestmentStore defines investment persistence. Investments are insert-only.
type InvestmentStore interface {
	CreateInvestment(ctx context.Context, investment *model.InvestmentModel) error
	GetInvestmentByTransaction(ctx context.Context, transactionId string) (*model.InvestmentModel, error)
	ListInvestments(ctx context.Context, ideaId string) ([]model.InvestmentModel, error)
	SumInvestments(ctx context.Context, ideaId string) (decimal.Decimal, error)
}

// Store is the record store: both collections plus change notification.
type Store interface {
	IdeaStore
	InvestmentStore
	Subscribe(collection Collection, onChange func()) (unsubscribe func())
}
