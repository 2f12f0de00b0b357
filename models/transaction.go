package models

import (
	"time"

	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeIncoming   TransactionType = "incoming"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypePayment    TransactionType = "payment"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is a ledger entry recording one movement of money. A completed
// transaction is never updated.
type Transaction struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	DeletedAt     gorm.DeletedAt    `gorm:"index" json:"-"`
	UserID        uint              `gorm:"not null;index" json:"user_id"`
	Type          TransactionType   `gorm:"size:20;not null" json:"type"`
	Status        TransactionStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	Amount        float64           `gorm:"not null" json:"amount"`
	Currency      string            `gorm:"size:10;not null" json:"currency"`
	InvoiceID     *uint             `gorm:"index" json:"invoice_id,omitempty"`
	BankAccountID *uint             `gorm:"index" json:"bank_account_id,omitempty"`
	TxHash        string            `gorm:"size:255" json:"tx_hash,omitempty"`
	Notes         string            `gorm:"type:text" json:"notes,omitempty"`
}

// TableName overrides the table name
func (Transaction) TableName() string {
	return "transactions"
}
