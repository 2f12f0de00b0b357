package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/yourusername/lancerpay/config"
	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

const publishTimeout = 5 * time.Second

// EventPublisher pushes a signed event envelope onto the delivery bus.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// KafkaPublisher writes envelopes to the webhook topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EmailSender delivers one message, best-effort.
type EmailSender interface {
	Send(to, subject, html string) error
}

// LogEmailSender stands in for a real delivery provider.
type LogEmailSender struct{}

func (LogEmailSender) Send(to, subject, html string) error {
	log.Printf("email to %s: %s", to, subject)
	return nil
}

// Notifier fans one event out to every webhook subscriber: it persists a
// signed outbox row per subscriber, then publishes the envelope to the bus.
// Every path is best-effort; failed rows stay pending for redelivery.
type Notifier struct {
	db          *gorm.DB
	subscribers []config.WebhookSubscriber
	publisher   EventPublisher
	email       EmailSender
}

func NewNotifier(db *gorm.DB, subscribers []config.WebhookSubscriber, publisher EventPublisher, email EmailSender) *Notifier {
	return &Notifier{db: db, subscribers: subscribers, publisher: publisher, email: email}
}

type webhookEnvelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	SubscriberID string          `json:"subscriber_id"`
	URL          string          `json:"url"`
	Signature    string          `json:"signature"`
	Payload      json.RawMessage `json:"payload"`
	EmittedAt    time.Time       `json:"emitted_at"`
}

// Dispatch enqueues eventType for every subscriber. Errors are logged, never
// returned to settlement paths; the caller treats dispatch as fire-and-forget.
func (n *Notifier) Dispatch(eventType string, payload map[string]interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: failed to encode %s payload: %v", eventType, err)
		return
	}

	eventID := uuid.NewString()
	for _, sub := range n.subscribers {
		sig := SignPayload(sub.Secret, body)
		event := models.WebhookEvent{
			EventID:      eventID,
			SubscriberID: sub.ID,
			EventType:    eventType,
			Payload:      string(body),
			Signature:    sig,
			Status:       models.WebhookStatusPending,
		}
		if err := n.db.Create(&event).Error; err != nil {
			log.Printf("notify: failed to enqueue %s for subscriber %s: %v", eventType, sub.ID, err)
			continue
		}

		if n.publisher == nil {
			continue
		}

		envelope, _ := json.Marshal(webhookEnvelope{
			EventID:      eventID,
			EventType:    eventType,
			SubscriberID: sub.ID,
			URL:          sub.URL,
			Signature:    sig,
			Payload:      body,
			EmittedAt:    time.Now().UTC(),
		})

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := n.publisher.Publish(ctx, eventID, envelope)
		cancel()
		if err != nil {
			log.Printf("notify: failed to publish %s for subscriber %s: %v", eventType, sub.ID, err)
			n.db.Model(&models.WebhookEvent{}).Where("id = ?", event.ID).
				Update("status", models.WebhookStatusFailed)
			continue
		}

		now := time.Now().UTC()
		n.db.Model(&models.WebhookEvent{}).Where("id = ?", event.ID).
			Updates(map[string]interface{}{"status": models.WebhookStatusPublished, "published_at": now})
	}
}

// Email sends best-effort; a failure is logged and swallowed.
func (n *Notifier) Email(to, subject, html string) {
	if n.email == nil || to == "" {
		return
	}
	if err := n.email.Send(to, subject, html); err != nil {
		log.Printf("notify: failed to email %s: %v", to, err)
	}
}

// SignPayload computes the hex HMAC-SHA256 of body under the subscriber
// secret. Receivers recompute it to authenticate deliveries.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
