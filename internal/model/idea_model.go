package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// IdeaModel 融资想法
type IdeaModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at"`

	// 基本信息
	OwnerAddress string `json:"owner_address" gorm:"not null;index"`
	Title        string `json:"title" gorm:"not null"`
	Description  string `json:"description" gorm:"type:text"`
	ImageURL     string `json:"image_url"`

	// 融资信息，创建后不可变
	MoneyNeeded  decimal.Decimal `json:"money_needed" gorm:"type:numeric(38,18);not null"`
	ShareOffered string          `json:"share_offered" gorm:"type:text"`
	DurationDays int             `json:"duration_days" gorm:"not null"`
	EndDate      time.Time       `json:"end_date" gorm:"not null"`

	Status IdeaStatus `json:"status" gorm:"type:varchar(16);not null;index;default:'open'"`
}

// IdeaStatus 想法状态
type IdeaStatus string

const (
	IdeaStatusOpen    IdeaStatus = "open"    // 融资中
	IdeaStatusFunded  IdeaStatus = "funded"  // 已达成目标
	IdeaStatusExpired IdeaStatus = "expired" // 已过期
)

// Terminal funded 与 expired 为终态
func (s IdeaStatus) Terminal() bool {
	return s == IdeaStatusFunded || s == IdeaStatusExpired
}

// Valid 是否为已知状态
func (s IdeaStatus) Valid() bool {
	switch s {
	case IdeaStatusOpen, IdeaStatusFunded, IdeaStatusExpired:
		return true
	}
	return false
}

// CanTransition open 只能流转到 funded 或 expired
func (s IdeaStatus) CanTransition(to IdeaStatus) bool {
	return s == IdeaStatusOpen && to.Terminal()
}

// PastDeadline 截止时间已过
func (i *IdeaModel) PastDeadline(now time.Time) bool {
	return now.After(i.EndDate)
}

// TableName 自定义表名
func (IdeaModel) TableName() string {
	return "idea"
}
