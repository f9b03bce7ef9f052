package funding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvestResult 投资提交结果
type InvestResult struct {
	Investment      model.InvestmentModel `json:"investment"`
	SharePercentage decimal.Decimal       `json:"share_percentage"`
	TotalInvested   decimal.Decimal       `json:"total_invested"`
	IdeaStatus      model.IdeaStatus      `json:"idea_status"`
}

// PendingInvestment 链上已确认但尚未落库的投资，用于修复
type PendingInvestment struct {
	IdeaId          string          `json:"idea_id"`
	InvestorAddress string          `json:"investor_address"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionId   string          `json:"transaction_id"`
	InvestedAt      time.Time       `json:"invested_at"`
}

func pendingOf(inv *model.InvestmentModel) PendingInvestment {
	return PendingInvestment{
		IdeaId:          inv.IdeaId,
		InvestorAddress: inv.InvestorAddress,
		Amount:          inv.Amount,
		TransactionId:   inv.TransactionId,
		InvestedAt:      inv.InvestedAt,
	}
}

// Invest 投资提交协议：校验、链上转账、写入投资记录、重算总额并流转为 funded
func (e *Engine) Invest(ctx context.Context, session ledger.Session, ideaId string, amount decimal.Decimal) (*InvestResult, error) {
	if !amount.IsPositive() {
		return nil, invalid("amount", ErrInvalidAmount, "got %s", amount)
	}

	idea, err := e.GetIdea(ctx, ideaId)
	if err != nil {
		return nil, err
	}

	release, err := e.admit(ctx, idea, amount)
	if err != nil {
		return nil, err
	}
	defer release()

	txID, err := e.payments.SubmitPayment(ctx, session, idea.OwnerAddress, amount, investMemo(idea.Id))
	if err != nil {
		logger.Warn("Investment of %s into idea %s by %s failed: %v", amount, idea.Id, session.Address, err)
		return nil, err
	}

	// 链上转账已不可撤销，后续写入不再响应取消
	ctx = context.WithoutCancel(ctx)

	investment := &model.InvestmentModel{
		IdeaId:          idea.Id,
		InvestorAddress: common.HexToAddress(session.Address).Hex(),
		Amount:          amount,
		SharePercentage: SharePercentage(amount, idea.MoneyNeeded),
		TransactionId:   txID,
		InvestedAt:      e.now().UTC(),
	}
	return e.record(ctx, idea, investment)
}

func investMemo(ideaId string) string {
	return fmt.Sprintf("ideafund:invest:%s", ideaId)
}

// admit 第一步校验，reserve 模式下同时预留额度。返回的 release 必须在记录写入后调用。
func (e *Engine) admit(ctx context.Context, idea *model.IdeaModel, amount decimal.Decimal) (func(), error) {
	if idea.Status != model.IdeaStatusOpen {
		return nil, invalid("idea_id", ErrIdeaNotOpen, "idea %s is %s", idea.Id, idea.Status)
	}
	if amount.GreaterThan(idea.MoneyNeeded) {
		return nil, invalid("amount", ErrAmountExceedsLimit, "%s exceeds goal %s", amount, idea.MoneyNeeded)
	}

	if e.policy.CommitMode == CommitReserve {
		return e.reservations.reserve(idea.Id, amount, func(pending decimal.Decimal) error {
			total, err := e.store.SumInvestments(ctx, idea.Id)
			if err != nil {
				return fmt.Errorf("failed to sum investments for idea %s: %w", idea.Id, err)
			}
			remaining := idea.MoneyNeeded.Sub(total).Sub(pending)
			if amount.GreaterThan(remaining) {
				return invalid("amount", ErrAmountExceedsLimit, "%s exceeds remaining %s (%s in flight)", amount, decimal.Max(remaining, decimal.Zero), pending)
			}
			return nil
		})
	}

	if e.policy.AmountLimit == LimitRemaining {
		total, err := e.store.SumInvestments(ctx, idea.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to sum investments for idea %s: %w", idea.Id, err)
		}
		remaining := idea.MoneyNeeded.Sub(total)
		if amount.GreaterThan(remaining) {
			return nil, invalid("amount", ErrAmountExceedsLimit, "%s exceeds remaining %s", amount, decimal.Max(remaining, decimal.Zero))
		}
	}
	return func() {}, nil
}

// record 写入投资记录并结算。重复的交易号视为已写入。
func (e *Engine) record(ctx context.Context, idea *model.IdeaModel, investment *model.InvestmentModel) (*InvestResult, error) {
	if investment.Id == "" {
		investment.Id = uuid.NewString()
	}

	err := e.store.CreateInvestment(ctx, investment)
	switch {
	case errors.Is(err, repository.ErrDuplicateTransaction):
		existing, lookupErr := e.store.GetInvestmentByTransaction(ctx, investment.TransactionId)
		if lookupErr != nil {
			return nil, &PersistenceError{Stage: StageRecordInvestment, Pending: pendingOf(investment), Err: lookupErr}
		}
		logger.Info("Investment for tx %s already recorded as %s", investment.TransactionId, existing.Id)
		investment = existing
	case err != nil:
		logger.Error("Failed to record investment for tx %s on idea %s: %v", investment.TransactionId, idea.Id, err)
		return nil, &PersistenceError{Stage: StageRecordInvestment, Pending: pendingOf(investment), Err: err}
	default:
		logger.Info("Recorded investment %s: %s into idea %s (%s%%) tx=%s",
			investment.Id, investment.Amount, idea.Id, investment.SharePercentage.StringFixed(2), investment.TransactionId)
	}

	return e.finish(ctx, idea, investment)
}

// finish 结算已写入的投资
func (e *Engine) finish(ctx context.Context, idea *model.IdeaModel, investment *model.InvestmentModel) (*InvestResult, error) {
	result := &InvestResult{
		Investment:      *investment,
		SharePercentage: investment.SharePercentage,
	}

	status, total, _, err := e.settle(ctx, idea)
	result.IdeaStatus = status
	result.TotalInvested = total
	if err != nil {
		var pe *PersistenceError
		if errors.As(err, &pe) {
			pe.Pending = pendingOf(investment)
			return nil, pe
		}
		return result, err
	}
	if status == model.IdeaStatusOpen {
		// 链上等待期间想法可能已经到期
		result.IdeaStatus = e.currentStatus(ctx, idea.Id, status)
	}
	return result, nil
}

// currentStatus 重新读取并对账想法状态，读取失败时返回 fallback
func (e *Engine) currentStatus(ctx context.Context, ideaId string, fallback model.IdeaStatus) model.IdeaStatus {
	current, err := e.store.GetIdea(ctx, ideaId)
	if err != nil {
		logger.Warn("Failed to reload idea %s after investment: %v", ideaId, err)
		return fallback
	}
	reconciled, err := e.Reconcile(ctx, current)
	if err != nil {
		logger.Warn("Failed to reconcile idea %s after investment: %v", ideaId, err)
		return current.Status
	}
	return reconciled.Status
}

// settle 重新读取总额，达到目标时 open → funded；funded 表示本次调用完成了该流转
func (e *Engine) settle(ctx context.Context, idea *model.IdeaModel) (status model.IdeaStatus, total decimal.Decimal, funded bool, err error) {
	total, err = e.store.SumInvestments(ctx, idea.Id)
	if err != nil {
		return idea.Status, decimal.Zero, false, &PersistenceError{Stage: StageUpdateStatus, Err: err}
	}
	if total.LessThan(idea.MoneyNeeded) {
		return idea.Status, total, false, nil
	}

	changed, err := e.store.UpdateIdeaStatus(ctx, idea.Id, model.IdeaStatusOpen, model.IdeaStatusFunded)
	if err != nil {
		return idea.Status, total, false, &PersistenceError{Stage: StageUpdateStatus, Err: err}
	}
	if changed {
		logger.Info("Idea %s funded: raised %s of %s", idea.Id, total, idea.MoneyNeeded)
		return model.IdeaStatusFunded, total, true, nil
	}

	current, err := e.store.GetIdea(ctx, idea.Id)
	if err != nil {
		return idea.Status, total, false, &PersistenceError{Stage: StageUpdateStatus, Err: err}
	}
	if current.Status == model.IdeaStatusFunded {
		return current.Status, total, false, nil
	}
	logger.Warn("Idea %s reached its goal but is already %s", idea.Id, current.Status)
	return current.Status, total, false, &StatusConflictError{IdeaId: idea.Id, Status: current.Status}
}

// RepairInvestment 仅补写投资记录：按交易号幂等，确认链上交易后写入，绝不重新支付
func (e *Engine) RepairInvestment(ctx context.Context, pending PendingInvestment) (*InvestResult, error) {
	if strings.TrimSpace(pending.TransactionId) == "" {
		return nil, invalid("transaction_id", ErrInvalidRepair, "transaction id is required")
	}
	if !pending.Amount.IsPositive() {
		return nil, invalid("amount", ErrInvalidAmount, "got %s", pending.Amount)
	}
	if !common.IsHexAddress(pending.InvestorAddress) {
		return nil, invalid("investor_address", ErrInvalidRepair, "%q is not a valid address", pending.InvestorAddress)
	}

	idea, err := e.loadIdea(ctx, pending.IdeaId)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.GetInvestmentByTransaction(ctx, pending.TransactionId)
	switch {
	case err == nil:
		if existing.IdeaId != idea.Id {
			return nil, invalid("transaction_id", ErrInvalidRepair, "tx %s belongs to idea %s", pending.TransactionId, existing.IdeaId)
		}
		return e.finish(ctx, idea, existing)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to look up tx %s: %w", pending.TransactionId, err)
	}

	transfer, err := e.payments.VerifyTransaction(ctx, pending.TransactionId)
	if err != nil {
		return nil, err
	}
	if err := matchTransfer(transfer, idea, pending); err != nil {
		logger.Warn("Rejected repair for tx %s on idea %s: %v", pending.TransactionId, idea.Id, err)
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	investedAt := pending.InvestedAt
	if investedAt.IsZero() {
		investedAt = e.now().UTC()
	}
	investment := &model.InvestmentModel{
		IdeaId:          idea.Id,
		InvestorAddress: common.HexToAddress(pending.InvestorAddress).Hex(),
		Amount:          pending.Amount,
		SharePercentage: SharePercentage(pending.Amount, idea.MoneyNeeded),
		TransactionId:   pending.TransactionId,
		InvestedAt:      investedAt,
	}
	logger.Info("Repairing investment for tx %s on idea %s", pending.TransactionId, idea.Id)
	return e.record(ctx, idea, investment)
}

// matchTransfer 链上转账必须与补录内容一致：投资人付款给想法发起人，金额相同，备注指向该想法
func matchTransfer(transfer *ledger.Transfer, idea *model.IdeaModel, pending PendingInvestment) error {
	switch {
	case common.HexToAddress(transfer.Sender) != common.HexToAddress(pending.InvestorAddress):
		return invalid("investor_address", ErrTransferMismatch, "tx %s was sent by %s", transfer.TxID, transfer.Sender)
	case common.HexToAddress(transfer.Receiver) != common.HexToAddress(idea.OwnerAddress):
		return invalid("transaction_id", ErrTransferMismatch, "tx %s was paid to %s, not the idea owner", transfer.TxID, transfer.Receiver)
	case !transfer.Amount.Equal(pending.Amount):
		return invalid("amount", ErrTransferMismatch, "tx %s transferred %s, not %s", transfer.TxID, transfer.Amount, pending.Amount)
	case transfer.Memo != investMemo(idea.Id):
		return invalid("transaction_id", ErrTransferMismatch, "tx %s is not an investment in idea %s", transfer.TxID, idea.Id)
	}
	return nil
}
