package handler

import (
	"time"

	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/model"
	"github.com/shopspring/decimal"
)

// 通用响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// CreateIdeaRequest 创建想法请求
type CreateIdeaRequest struct {
	OwnerAddress string          `json:"owner_address" binding:"required"`
	Title        string          `json:"title" binding:"required"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	MoneyNeeded  decimal.Decimal `json:"money_needed"`
	ShareOffered string          `json:"share_offered"`
	DurationDays int             `json:"duration_days" binding:"required"`
}

func (r CreateIdeaRequest) toNewIdea() funding.NewIdea {
	return funding.NewIdea{
		OwnerAddress: r.OwnerAddress,
		Title:        r.Title,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		MoneyNeeded:  r.MoneyNeeded,
		ShareOffered: r.ShareOffered,
		DurationDays: r.DurationDays,
	}
}

// InvestRequest 投资请求。付款账户由访问令牌决定，investor_address 可省略，填写时必须与之一致
type InvestRequest struct {
	InvestorAddress string          `json:"investor_address"`
	Amount          decimal.Decimal `json:"amount"`
}

// RepairRequest 投资修复请求，与持久化失败时返回的数据一致
type RepairRequest funding.PendingInvestment

// IdeaListResponse 想法列表
type IdeaListResponse struct {
	Ideas       []model.IdeaModel `json:"ideas"`
	Total       int               `json:"total"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// InvestmentListResponse 投资记录列表
type InvestmentListResponse struct {
	Investments []model.InvestmentModel `json:"investments"`
	Total       int                     `json:"total"`
}
