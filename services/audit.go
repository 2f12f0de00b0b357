package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

// Auditor appends tamper-evident lifecycle events. Each row carries an
// HMAC-SHA256 over (invoice id, event type, timestamp, metadata); reads
// recompute the signature and flag mismatches without touching storage.
type Auditor struct {
	db     *gorm.DB
	secret []byte
}

func NewAuditor(db *gorm.DB, secret string) *Auditor {
	return &Auditor{db: db, secret: []byte(secret)}
}

// AuditRecord is an AuditEvent as returned to readers: verified, and with
// PII masked unless the reader owns the invoice.
type AuditRecord struct {
	models.AuditEvent
	IsValid bool `json:"is_valid"`
}

// Append writes one signed event. Returns an error so the settlement fan-out
// can log it, but callers never abort on audit failure.
func (a *Auditor) Append(invoiceID uint, eventType string, actorID *uint, metadata map[string]interface{}) error {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	// Postgres keeps microseconds; anything finer would not survive the
	// round-trip and the signature would never verify against a read-back row.
	now := time.Now().UTC().Truncate(time.Microsecond)
	event := models.AuditEvent{
		CreatedAt: now,
		InvoiceID: invoiceID,
		EventType: eventType,
		ActorID:   actorID,
		Metadata:  string(metaJSON),
		Signature: a.sign(invoiceID, eventType, now, string(metaJSON)),
	}

	if err := a.db.Create(&event).Error; err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Trail returns the ordered audit history for an invoice. When includeRaw is
// false, metadata PII is masked before it leaves the store.
func (a *Auditor) Trail(invoiceID uint, includeRaw bool) ([]AuditRecord, error) {
	var events []models.AuditEvent
	if err := a.db.Where("invoice_id = ?", invoiceID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}

	records := make([]AuditRecord, 0, len(events))
	for _, ev := range events {
		rec := AuditRecord{AuditEvent: ev, IsValid: a.Verify(&ev)}
		if !includeRaw {
			rec.Metadata = maskMetadata(ev.Metadata)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Verify recomputes the event signature and compares in constant time.
func (a *Auditor) Verify(ev *models.AuditEvent) bool {
	expected := a.sign(ev.InvoiceID, ev.EventType, ev.CreatedAt, ev.Metadata)
	return hmac.Equal([]byte(expected), []byte(ev.Signature))
}

func (a *Auditor) sign(invoiceID uint, eventType string, ts time.Time, metaJSON string) string {
	mac := hmac.New(sha256.New, a.secret)
	fmt.Fprintf(mac, "%d|%s|%s|%s", invoiceID, eventType, ts.UTC().Format(time.RFC3339Nano), metaJSON)
	return hex.EncodeToString(mac.Sum(nil))
}

var ipv4LastOctets = regexp.MustCompile(`^(\d+\.\d+)\.\d+\.\d+$`)

// maskMetadata hides the tail of any IP address in the metadata blob. The
// blob is returned unchanged if it isn't a JSON object.
func maskMetadata(metaJSON string) string {
	var meta map[string]interface{}
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return metaJSON
	}

	changed := false
	for k, v := range meta {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if masked := ipv4LastOctets.ReplaceAllString(s, "$1.x.x"); masked != s {
			meta[k] = masked
			changed = true
		}
	}
	if !changed {
		return metaJSON
	}

	out, err := json.Marshal(meta)
	if err != nil {
		log.Printf("audit: failed to re-encode masked metadata: %v", err)
		return metaJSON
	}
	return string(out)
}
