package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrTransactionFailed matches every failure of SubmitPayment.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmationTimeout is returned when the round ceiling is reached before confirmation.
	ErrConfirmationTimeout = errors.New("confirmation timed out")

	// ErrTransactionReverted is returned when the transaction was mined but failed.
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrUnauthorizedSigner is returned when the sender is not the session's signer.
	ErrUnauthorizedSigner = errors.New("sender is not the authorized signer")

	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
)

// Stage 交易失败所处的阶段
type Stage string

const (
	StageAuthorize Stage = "authorize"
	StageBuild     Stage = "build"
	StageParams    Stage = "params"
	StageSubmit    Stage = "submit"
	StageConfirm   Stage = "confirm"
)

// TransactionFailedError 单笔支付失败。TxID 非空时交易已提交，资金可能仍会到账，
// 需要人工核对后通过补录修复，不能重新支付。
type TransactionFailedError struct {
	Stage Stage
	TxID  string
	Cause error
}

func (e *TransactionFailedError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("transaction failed at %s (tx %s): %v", e.Stage, e.TxID, e.Cause)
	}
	return fmt.Sprintf("transaction failed at %s: %v", e.Stage, e.Cause)
}

func (e *TransactionFailedError) Unwrap() error {
	return e.Cause
}

func (e *TransactionFailedError) Is(target error) bool {
	return target == ErrTransactionFailed
}

func failed(stage Stage, txID string, cause error) error {
	return &TransactionFailedError{Stage: stage, TxID: txID, Cause: cause}
}
