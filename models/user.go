package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	Email           string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	PasswordHash    string         `gorm:"size:255;not null" json:"-"`
	Role            string         `gorm:"size:20;default:'user'" json:"role"` // admin, user
	StellarAddress  string         `gorm:"size:56" json:"stellar_address"`
	ReferralCode    string         `gorm:"uniqueIndex;size:16" json:"referral_code"`
	ReferredByID    *uint          `gorm:"index" json:"referred_by_id,omitempty"`
	ReferredBy      *User          `gorm:"foreignKey:ReferredByID" json:"-"`
	DefaultCurrency string         `gorm:"size:10;default:'USDC'" json:"default_currency"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}
