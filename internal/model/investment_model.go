package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvestmentModel 投资记录，链上确认后写入，之后不再修改
type InvestmentModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`

	IdeaId          string          `json:"idea_id" gorm:"type:varchar(36);not null;index"`
	InvestorAddress string          `json:"investor_address" gorm:"not null;index"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	SharePercentage decimal.Decimal `json:"share_percentage" gorm:"type:numeric(38,18);not null"`
	TransactionId   string          `json:"transaction_id" gorm:"not null;uniqueIndex"`
	InvestedAt      time.Time       `json:"invested_at" gorm:"not null"`
}

// TableName 自定义表名
func (InvestmentModel) TableName() string {
	return "investment"
}
