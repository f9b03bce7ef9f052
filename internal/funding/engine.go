package funding

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Payments 链上支付能力，由 ledger.Gateway 实现
type Payments interface {
	SubmitPayment(ctx context.Context, session ledger.Session, receiver string, amount decimal.Decimal, memo string) (string, error)
	VerifyTransaction(ctx context.Context, txID string) (*ledger.Transfer, error)
}

// Engine 融资引擎：想法生命周期与投资提交协议
type Engine struct {
	store        repository.Store
	payments     Payments
	policy       Policy
	now          func() time.Time
	reservations *reservations
}

// Option 引擎选项
type Option func(*Engine)

// WithPolicy 设置投资策略
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine 创建融资引擎
func NewEngine(store repository.Store, payments Payments, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		payments:     payments,
		policy:       DefaultPolicy(),
		now:          time.Now,
		reservations: newReservations(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy 当前策略
func (e *Engine) Policy() Policy {
	return e.policy
}

// NewIdea 创建想法的输入
type NewIdea struct {
	OwnerAddress string
	Title        string
	Description  string
	ImageURL     string
	MoneyNeeded  decimal.Decimal
	ShareOffered string
	DurationDays int
}

func (n NewIdea) validate() error {
	if !common.IsHexAddress(n.OwnerAddress) {
		return invalid("owner_address", ErrInvalidIdea, "%q is not a valid address", n.OwnerAddress)
	}
	if strings.TrimSpace(n.Title) == "" {
		return invalid("title", ErrInvalidIdea, "title is required")
	}
	if !n.MoneyNeeded.IsPositive() {
		return invalid("money_needed", ErrInvalidIdea, "must be greater than zero, got %s", n.MoneyNeeded)
	}
	if n.DurationDays < 1 {
		return invalid("duration_days", ErrInvalidIdea, "must be at least one day, got %d", n.DurationDays)
	}
	if n.ImageURL != "" {
		if _, err := url.ParseRequestURI(n.ImageURL); err != nil {
			return invalid("image_url", ErrInvalidIdea, "%v", err)
		}
	}
	return nil
}

// CreateIdea 创建想法，状态为 open，截止时间为创建时间加上天数
func (e *Engine) CreateIdea(ctx context.Context, in NewIdea) (*model.IdeaModel, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// 数据库时间精度为微秒，截断后 EndDate 与 CreatedAt 的差值在读回后保持不变
	createdAt := e.now().UTC().Truncate(time.Microsecond)
	idea := &model.IdeaModel{
		CreatedAt:    createdAt,
		OwnerAddress: common.HexToAddress(in.OwnerAddress).Hex(),
		Title:        strings.TrimSpace(in.Title),
		Description:  in.Description,
		ImageURL:     in.ImageURL,
		MoneyNeeded:  in.MoneyNeeded,
		ShareOffered: in.ShareOffered,
		DurationDays: in.DurationDays,
		EndDate:      createdAt.Add(time.Duration(in.DurationDays) * 24 * time.Hour),
		Status:       model.IdeaStatusOpen,
	}
	if err := e.store.CreateIdea(ctx, idea); err != nil {
		return nil, fmt.Errorf("failed to create idea: %w", err)
	}

	logger.Info("Created idea %s (%s) goal=%s ends=%s", idea.Id, idea.Title, idea.MoneyNeeded, idea.EndDate.Format(time.RFC3339))
	return idea, nil
}

// GetIdea 读取想法并执行过期对账
func (e *Engine) GetIdea(ctx context.Context, id string) (*model.IdeaModel, error) {
	idea, err := e.loadIdea(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.Reconcile(ctx, idea)
}

func (e *Engine) loadIdea(ctx context.Context, id string) (*model.IdeaModel, error) {
	idea, err := e.store.GetIdea(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, invalid("idea_id", ErrIdeaNotFound, "%s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load idea %s: %w", id, err)
	}
	return idea, nil
}

// Reconcile 读时对账：open 且已过截止时间的想法写回为 expired
func (e *Engine) Reconcile(ctx context.Context, idea *model.IdeaModel) (*model.IdeaModel, error) {
	reconciled, _, err := e.expire(ctx, idea)
	return reconciled, err
}

// expire 过期写回；expired 表示本次调用完成了 open → expired
func (e *Engine) expire(ctx context.Context, idea *model.IdeaModel) (*model.IdeaModel, bool, error) {
	if idea.Status != model.IdeaStatusOpen || !idea.PastDeadline(e.now()) {
		return idea, false, nil
	}

	changed, err := e.store.UpdateIdeaStatus(ctx, idea.Id, model.IdeaStatusOpen, model.IdeaStatusExpired)
	if err != nil {
		return nil, false, fmt.Errorf("failed to expire idea %s: %w", idea.Id, err)
	}
	if changed {
		logger.Info("Idea %s expired at %s", idea.Id, idea.EndDate.Format(time.RFC3339))
		expired := *idea
		expired.Status = model.IdeaStatusExpired
		return &expired, true, nil
	}

	// 其他流程已经改变了状态，以存储为准
	current, err := e.store.GetIdea(ctx, idea.Id)
	if err != nil {
		return nil, false, fmt.Errorf("failed to reload idea %s: %w", idea.Id, err)
	}
	return current, false, nil
}

// ListIdeas 按条件列出想法，逐个对账
func (e *Engine) ListIdeas(ctx context.Context, query repository.IdeaQuery) ([]model.IdeaModel, error) {
	// 存储中的 open 可能已经过期，状态过滤放在对账之后
	all := query
	all.Statuses = nil
	ideas, err := e.store.ListIdeas(ctx, all)
	if err != nil {
		return nil, err
	}

	result := make([]model.IdeaModel, 0, len(ideas))
	for i := range ideas {
		idea, err := e.Reconcile(ctx, &ideas[i])
		if err != nil {
			return nil, err
		}
		if len(query.Statuses) > 0 && !hasStatus(query.Statuses, idea.Status) {
			continue
		}
		result = append(result, *idea)
	}
	return result, nil
}

func hasStatus(statuses []model.IdeaStatus, s model.IdeaStatus) bool {
	for _, status := range statuses {
		if status == s {
			return true
		}
	}
	return false
}

// ListInvestments 想法的全部投资记录
func (e *Engine) ListInvestments(ctx context.Context, ideaId string) ([]model.InvestmentModel, error) {
	if _, err := e.loadIdea(ctx, ideaId); err != nil {
		return nil, err
	}
	investments, err := e.store.ListInvestments(ctx, ideaId)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments for idea %s: %w", ideaId, err)
	}
	return investments, nil
}

// Progress 融资进度
type Progress struct {
	IdeaId               string           `json:"idea_id"`
	Status               model.IdeaStatus `json:"status"`
	Goal                 decimal.Decimal  `json:"goal"`
	Raised               decimal.Decimal  `json:"raised"`
	CompletionPercentage decimal.Decimal  `json:"completion_percentage"`
	InvestmentCount      int              `json:"investment_count"`
	InvestorCount        int              `json:"investor_count"`
	Pending              decimal.Decimal  `json:"pending"`
	EndDate              time.Time        `json:"end_date"`
	RemainingSeconds     int64            `json:"remaining_seconds"`
}

// Progress 统计想法的融资进度
func (e *Engine) Progress(ctx context.Context, ideaId string) (*Progress, error) {
	idea, err := e.GetIdea(ctx, ideaId)
	if err != nil {
		return nil, err
	}
	investments, err := e.store.ListInvestments(ctx, ideaId)
	if err != nil {
		return nil, fmt.Errorf("failed to list investments for idea %s: %w", ideaId, err)
	}

	raised := decimal.Zero
	investors := make(map[string]struct{})
	for _, inv := range investments {
		raised = raised.Add(inv.Amount)
		investors[strings.ToLower(inv.InvestorAddress)] = struct{}{}
	}

	var remaining int64
	if idea.Status == model.IdeaStatusOpen {
		if left := idea.EndDate.Sub(e.now()); left > 0 {
			remaining = int64(left / time.Second)
		}
	}

	return &Progress{
		IdeaId:               idea.Id,
		Status:               idea.Status,
		Goal:                 idea.MoneyNeeded,
		Raised:               raised,
		CompletionPercentage: SharePercentage(raised, idea.MoneyNeeded),
		InvestmentCount:      len(investments),
		InvestorCount:        len(investors),
		Pending:              e.reservations.pending(idea.Id),
		EndDate:              idea.EndDate,
		RemainingSeconds:     remaining,
	}, nil
}

// SharePercentage amount / goal × 100，提交时计算一次
func SharePercentage(amount, goal decimal.Decimal) decimal.Decimal {
	if !goal.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(100)).Div(goal)
}
