package models

import "time"

type EscrowEventType string

const (
	EscrowEventHeld     EscrowEventType = "held"
	EscrowEventReleased EscrowEventType = "released"
	EscrowEventDisputed EscrowEventType = "disputed"
)

type ActorType string

const (
	ActorClient     ActorType = "client"
	ActorFreelancer ActorType = "freelancer"
	ActorAdmin      ActorType = "admin"
)

// EscrowEvent is one append-only history entry in an invoice's escrow
// lifecycle. Rows are never updated or deleted.
type EscrowEvent struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time       `json:"created_at"`
	InvoiceID  uint            `gorm:"not null;index" json:"invoice_id"`
	EventType  EscrowEventType `gorm:"size:20;not null" json:"event_type"`
	ActorType  ActorType       `gorm:"size:20;not null" json:"actor_type"`
	ActorEmail string          `gorm:"size:255" json:"actor_email"`
	Notes      string          `gorm:"type:text" json:"notes,omitempty"`
	Metadata   string          `gorm:"type:text" json:"metadata,omitempty"` // JSON blob
}

// TableName overrides the table name
func (EscrowEvent) TableName() string {
	return "escrow_events"
}
