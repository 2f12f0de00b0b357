package models

import (
	"time"

	"gorm.io/gorm"
)

type GoalStatus string

const (
	GoalStatusInProgress GoalStatus = "in_progress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusReleased   GoalStatus = "released"
)

// SavingsGoal accrues a fixed percentage of each settled invoice.
// CurrentAmount only grows through settlement allocation and only drops to
// zero through release.
type SavingsGoal struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
	UserID            uint           `gorm:"not null;index" json:"user_id"`
	Title             string         `gorm:"size:255;not null" json:"title"`
	TargetAmount      float64        `gorm:"not null" json:"target_amount"`
	CurrentAmount     float64        `gorm:"default:0" json:"current_amount"`
	SavingsPercentage int            `gorm:"not null" json:"savings_percentage"` // 1-50
	IsActive          bool           `gorm:"default:true" json:"is_active"`
	Status            GoalStatus     `gorm:"size:20;not null;default:'in_progress'" json:"status"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	ReleasedAt        *time.Time     `json:"released_at,omitempty"`
}

// TableName overrides the table name
func (SavingsGoal) TableName() string {
	return "savings_goals"
}

// SavingsAllocation records one goal's share of one settled invoice. The
// (goal, invoice) unique index makes a re-driven allocation a no-op.
type SavingsAllocation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	GoalID    uint      `gorm:"not null;uniqueIndex:idx_goal_invoice" json:"goal_id"`
	InvoiceID uint      `gorm:"not null;uniqueIndex:idx_goal_invoice" json:"invoice_id"`
	Amount    float64   `gorm:"not null" json:"amount"`
}

// TableName overrides the table name
func (SavingsAllocation) TableName() string {
	return "savings_allocations"
}
