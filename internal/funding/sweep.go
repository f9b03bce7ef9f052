package funding

import (
	"context"

	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/repository"
)

// SweepResult 一次状态巡检的结果
type SweepResult struct {
	Checked int
	Funded  int
	Expired int
}

// Sweep 巡检所有 open 想法：已达到目标的流转为 funded，过期的流转为 expired。
// 用于补齐结算失败或长期无人读取的想法。
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	ideas, err := e.store.ListIdeas(ctx, repository.IdeaQuery{Statuses: []model.IdeaStatus{model.IdeaStatusOpen}})
	if err != nil {
		return result, err
	}

	for i := range ideas {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		idea := &ideas[i]
		result.Checked++

		// 达到目标优先于过期
		// 只统计本次巡检完成的流转
		status, _, funded, err := e.settle(ctx, idea)
		if err != nil {
			logger.Warn("Failed to settle idea %s: %v", idea.Id, err)
			continue
		}
		if funded {
			result.Funded++
		}
		if status != model.IdeaStatusOpen {
			continue
		}

		_, expired, err := e.expire(ctx, idea)
		if err != nil {
			logger.Warn("Failed to reconcile idea %s: %v", idea.Id, err)
			continue
		}
		if expired {
			result.Expired++
		}
	}

	return result, nil
}
