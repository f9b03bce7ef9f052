package scheduler

import (
	"context"
	"time"

	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/logger"
	"github.com/blues/ideafund/internal/model"
	"github.com/go-co-op/gocron/v2"
)

const jobTimeout = 30 * time.Second

// Refresher 由 feed.Feed 实现
type Refresher interface {
	Refresh(ctx context.Context) ([]model.IdeaModel, error)
}

// Sweeper 由 funding.Engine 实现
type Sweeper interface {
	Sweep(ctx context.Context) (funding.SweepResult, error)
}

// FeedRefreshJob 定期刷新想法列表，顺带对账过期状态
type FeedRefreshJob struct {
	feed     Refresher
	interval time.Duration
}

// NewFeedRefreshJob 创建列表刷新任务
func NewFeedRefreshJob(feed Refresher, interval time.Duration) *FeedRefreshJob {
	return &FeedRefreshJob{feed: feed, interval: interval}
}

func (j *FeedRefreshJob) GetName() string {
	return "feed_refresher"
}

func (j *FeedRefreshJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *FeedRefreshJob) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	ideas, err := j.feed.Refresh(ctx)
	if err != nil {
		logger.Warn("Scheduled feed refresh failed: %v", err)
		return
	}
	logger.Debug("Scheduled feed refresh completed: %d ideas", len(ideas))
}

// FundingSweepJob 定期巡检 open 想法的状态
type FundingSweepJob struct {
	sweeper  Sweeper
	interval time.Duration
}

// NewFundingSweepJob 创建状态巡检任务
func NewFundingSweepJob(sweeper Sweeper, interval time.Duration) *FundingSweepJob {
	return &FundingSweepJob{sweeper: sweeper, interval: interval}
}

func (j *FundingSweepJob) GetName() string {
	return "funding_status_sweeper"
}

func (j *FundingSweepJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *FundingSweepJob) Execute() {
	logger.Info("Starting funding status sweep")

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.sweeper.Sweep(ctx)
	if err != nil {
		logger.Error("Funding status sweep failed: %v", err)
		return
	}
	logger.Info("Funding status sweep completed. Checked %d, funded %d, expired %d",
		result.Checked, result.Funded, result.Expired)
}
