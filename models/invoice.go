package models

import (
	"time"

	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusDisputed  InvoiceStatus = "disputed"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

type EscrowStatus string

const (
	EscrowStatusNone     EscrowStatus = "none"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusDisputed EscrowStatus = "disputed"
)

type Invoice struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	InvoiceNo        string         `gorm:"uniqueIndex;size:50;not null" json:"invoice_no"`
	UserID           uint           `gorm:"not null;index" json:"user_id"`
	User             User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ClientEmail      string         `gorm:"size:255;not null" json:"client_email"`
	ClientName       string         `gorm:"size:255" json:"client_name"`
	Amount           float64        `gorm:"not null" json:"amount"`
	Currency         string         `gorm:"size:10;not null;default:'USDC'" json:"currency"`
	Status           InvoiceStatus  `gorm:"size:20;not null;default:'pending'" json:"status"`
	EscrowEnabled    bool           `gorm:"default:false" json:"escrow_enabled"`
	EscrowStatus     EscrowStatus   `gorm:"size:20;not null;default:'none'" json:"escrow_status"`
	EscrowConditions string         `gorm:"type:text" json:"escrow_conditions,omitempty"`
	EscrowReleasedAt *time.Time     `json:"escrow_released_at,omitempty"`
	EscrowDisputedAt *time.Time     `json:"escrow_disputed_at,omitempty"`
	DueDate          *time.Time     `json:"due_date,omitempty"`
	PaidAt           *time.Time     `json:"paid_at,omitempty"`
	Description      string         `gorm:"type:text" json:"description"`
}

// TableName overrides the table name
func (Invoice) TableName() string {
	return "invoices"
}
