package models

import "time"

// AuditEvent is an append-only, HMAC-signed record of one lifecycle event.
// The signature covers (invoice id, event type, timestamp, metadata);
// verification happens on read and never rewrites the row.
type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	InvoiceID uint      `gorm:"not null;index" json:"invoice_id"`
	EventType string    `gorm:"size:50;not null" json:"event_type"`
	ActorID   *uint     `gorm:"index" json:"actor_id,omitempty"`
	Metadata  string    `gorm:"type:text" json:"metadata"` // JSON blob, stored in clear
	Signature string    `gorm:"size:64;not null" json:"signature"`
}

// TableName overrides the table name
func (AuditEvent) TableName() string {
	return "audit_events"
}
