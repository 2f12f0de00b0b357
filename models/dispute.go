package models

import (
	"time"

	"gorm.io/gorm"
)

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusClosed   DisputeStatus = "closed"
)

type DisputeAction string

const (
	DisputeActionRefund   DisputeAction = "refund"
	DisputeActionRevision DisputeAction = "revision"
)

// Dispute is at most 1:1 with a paid invoice; the unique index on InvoiceID
// is what turns a concurrent duplicate creation into a conflict.
type Dispute struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"-"`
	InvoiceID       uint             `gorm:"uniqueIndex;not null" json:"invoice_id"`
	Invoice         Invoice          `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	InitiatedBy     ActorType        `gorm:"size:20;not null" json:"initiated_by"` // client, freelancer
	InitiatorEmail  string           `gorm:"size:255;not null" json:"initiator_email"`
	Reason          string           `gorm:"type:text;not null" json:"reason"`
	RequestedAction DisputeAction    `gorm:"size:20;not null" json:"requested_action"`
	Status          DisputeStatus    `gorm:"size:20;not null;default:'open'" json:"status"`
	Resolution      string           `gorm:"type:text" json:"resolution,omitempty"`
	ResolvedAt      *time.Time       `json:"resolved_at,omitempty"`
	Messages        []DisputeMessage `gorm:"foreignKey:DisputeID" json:"messages,omitempty"`
}

// TableName overrides the table name
func (Dispute) TableName() string {
	return "disputes"
}

type DisputeMessage struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	DisputeID   uint      `gorm:"not null;index" json:"dispute_id"`
	SenderType  ActorType `gorm:"size:20;not null" json:"sender_type"`
	SenderEmail string    `gorm:"size:255;not null" json:"sender_email"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Attachments string    `gorm:"type:text" json:"attachments,omitempty"` // JSON array of URLs
}

// TableName overrides the table name
func (DisputeMessage) TableName() string {
	return "dispute_messages"
}
