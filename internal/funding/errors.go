package funding

import (
	"errors"
	"fmt"

	"github.com/blues/ideafund/internal/model"
)

var (
	ErrInvalidIdea        = errors.New("invalid idea")
	ErrIdeaNotFound       = errors.New("idea not found")
	ErrIdeaNotOpen        = errors.New("idea is not open for investment")
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrAmountExceedsLimit = errors.New("amount exceeds funding limit")
	ErrInvalidRepair      = errors.New("invalid repair request")
	ErrTransferMismatch   = errors.New("transaction does not match the investment")

	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence failed after ledger transfer")

	// ErrStatusConflict matches every *StatusConflictError.
	ErrStatusConflict = errors.New("idea status conflict")
)

// ValidationError 输入校验失败，没有产生任何副作用
type ValidationError struct {
	Field  string
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %v: %s", e.Field, e.Err, e.Detail)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field string, err error, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// PersistenceStage 链上转账成功后失败的写入步骤
type PersistenceStage string

const (
	StageRecordInvestment PersistenceStage = "record_investment"
	StageUpdateStatus     PersistenceStage = "update_status"
)

// PersistenceError 链上转账已完成但本地记录失败。
// 修复方式是用 Pending 调用 RepairInvestment，绝不能重新支付。
type PersistenceError struct {
	Stage   PersistenceStage
	Pending PendingInvestment
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%v at %s (tx %s): %v", ErrPersistence, e.Stage, e.Pending.TransactionId, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// StatusConflictError 投资已记录，但想法在转为 funded 之前已被其他流程关闭
type StatusConflictError struct {
	IdeaId string
	Status model.IdeaStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("%v: idea %s is %s", ErrStatusConflict, e.IdeaId, e.Status)
}

func (e *StatusConflictError) Is(target error) bool {
	return target == ErrStatusConflict
}
