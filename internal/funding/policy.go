package funding

import (
	"fmt"

	"github.com/blues/ideafund/internal/config"
)

// CommitMode 并发投资的处理方式
type CommitMode string

const (
	// CommitOptimistic 校验与结算都是先读后写，并发投资可能超募
	CommitOptimistic CommitMode = "optimistic"
	// CommitReserve 在进程内按想法预留额度，校验时计入在途金额
	CommitReserve CommitMode = "reserve"
)

// AmountLimit 单笔投资金额的上限依据
type AmountLimit string

const (
	LimitGoal      AmountLimit = "goal"
	LimitRemaining AmountLimit = "remaining"
)

// Policy 投资策略
type Policy struct {
	CommitMode  CommitMode
	AmountLimit AmountLimit
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{CommitMode: CommitOptimistic, AmountLimit: LimitGoal}
}

// PolicyFromConfig 从配置解析策略
func PolicyFromConfig(cfg config.FundingConfig) (Policy, error) {
	p := DefaultPolicy()
	switch CommitMode(cfg.CommitMode) {
	case "":
	case CommitOptimistic, CommitReserve:
		p.CommitMode = CommitMode(cfg.CommitMode)
	default:
		return p, fmt.Errorf("unknown funding.commit_mode %q", cfg.CommitMode)
	}
	switch AmountLimit(cfg.AmountLimit) {
	case "":
	case LimitGoal, LimitRemaining:
		p.AmountLimit = AmountLimit(cfg.AmountLimit)
	default:
		return p, fmt.Errorf("unknown funding.amount_limit %q", cfg.AmountLimit)
	}
	return p, nil
}
