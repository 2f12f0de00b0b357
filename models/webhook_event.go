package models

import "time"

type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusPublished WebhookStatus = "published"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookEvent is the outbox row for one subscriber delivery. The payload is
// signed with the subscriber's secret at enqueue time; the delivery transport
// re-drives pending/failed rows for at-least-once semantics.
type WebhookEvent struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	EventID      string        `gorm:"size:36;not null;index" json:"event_id"`
	SubscriberID string        `gorm:"size:64;not null;index" json:"subscriber_id"`
	EventType    string        `gorm:"size:50;not null" json:"event_type"`
	Payload      string        `gorm:"type:text;not null" json:"payload"` // JSON blob
	Signature    string        `gorm:"size:64;not null" json:"signature"`
	Status       WebhookStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	PublishedAt  *time.Time    `json:"published_at,omitempty"`
}

// TableName overrides the table name
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
