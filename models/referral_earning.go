package models

import (
	"time"

	"gorm.io/gorm"
)

type EarningStatus string

const (
	EarningStatusEarned EarningStatus = "earned"
	EarningStatusPaid   EarningStatus = "paid"
)

// ReferralEarning records the commission a referrer earned from one settled
// invoice of a user they referred. The composite unique index keeps fan-out
// retries from accruing the same commission twice.
type ReferralEarning struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	ReferrerID       uint           `gorm:"not null;uniqueIndex:idx_referrer_invoice" json:"referrer_id"`
	ReferredUserID   uint           `gorm:"not null;index" json:"referred_user_id"`
	InvoiceID        uint           `gorm:"not null;uniqueIndex:idx_referrer_invoice" json:"invoice_id"`
	CommissionAmount float64        `gorm:"not null" json:"commission_amount"`
	PlatformFee      float64        `gorm:"not null" json:"platform_fee"`
	Currency         string         `gorm:"size:10;not null" json:"currency"`
	Status           EarningStatus  `gorm:"size:20;not null;default:'earned'" json:"status"`
}

// TableName overrides the table name
func (ReferralEarning) TableName() string {
	return "referral_earnings"
}
