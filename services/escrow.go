package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

// EscrowService drives the escrow lifecycle of an invoice:
// none → held (on payment, when enabled) → released | disputed.
// The held→released and held→disputed edges are conditional updates on
// escrow_status so concurrent callers cannot both win.
type EscrowService struct {
	db       *gorm.DB
	notifier *Notifier
	auditor  *Auditor
}

func NewEscrowService(db *gorm.DB, notifier *Notifier, auditor *Auditor) *EscrowService {
	return &EscrowService{db: db, notifier: notifier, auditor: auditor}
}

// Enable turns escrow on for a pending invoice the caller owns.
func (s *EscrowService) Enable(invoiceID uint, caller Actor, conditions string) (*models.Invoice, error) {
	invoice, err := s.loadInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.UserID != caller.ID {
		return nil, apperr.New(apperr.Unauthorized, "only the invoice owner can enable escrow")
	}
	if invoice.Status != models.InvoiceStatusPending {
		return nil, apperr.InvalidStatef(string(invoice.Status), "escrow can only be enabled on a pending invoice")
	}
	if invoice.EscrowEnabled {
		return nil, apperr.New(apperr.Conflict, "escrow is already enabled for this invoice")
	}

	err = s.db.Model(invoice).Updates(map[string]interface{}{
		"escrow_enabled":    true,
		"escrow_conditions": conditions,
	}).Error
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// Release moves held funds to the freelancer. Only the invoice's client may
// release: the submitted email must match both the authenticated caller and
// the invoice record, which stops one client releasing another's escrow.
func (s *EscrowService) Release(invoiceID uint, caller Actor, clientEmail, notes string) (*models.Invoice, error) {
	invoice, err := s.loadInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeClient(invoice, caller, clientEmail); err != nil {
		return nil, err
	}

	// The status flip and its history entry commit together; the escrow
	// history never lags the live status.
	now := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND escrow_enabled = ? AND escrow_status = ?", invoiceID, true, models.EscrowStatusHeld).
			Updates(map[string]interface{}{
				"escrow_status":      models.EscrowStatusReleased,
				"escrow_released_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.invalidEscrowState(tx, invoice)
		}

		event := models.EscrowEvent{
			InvoiceID:  invoiceID,
			EventType:  models.EscrowEventReleased,
			ActorType:  models.ActorClient,
			ActorEmail: caller.Email,
			Notes:      notes,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyFreelancer(invoice, "Escrow released",
		fmt.Sprintf("The client released escrowed funds for invoice %s.", invoice.InvoiceNo))
	if err := s.auditor.Append(invoiceID, "escrow.released", nil, map[string]interface{}{
		"actor_email": caller.Email,
		"notes":       notes,
	}); err != nil {
		logStepFailure("escrow.release", "audit", invoiceID, err)
	}

	return s.loadInvoice(invoiceID)
}

// OpenDispute flips held escrow to disputed and records the client's reason.
func (s *EscrowService) OpenDispute(invoiceID uint, caller Actor, clientEmail, reason string, requestedAction models.DisputeAction) (*models.Invoice, error) {
	invoice, err := s.loadInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeClient(invoice, caller, clientEmail); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, apperr.New(apperr.ValidationFailed, "a dispute reason is required")
	}

	now := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND escrow_enabled = ? AND escrow_status = ?", invoiceID, true, models.EscrowStatusHeld).
			Updates(map[string]interface{}{
				"escrow_status":      models.EscrowStatusDisputed,
				"escrow_disputed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return s.invalidEscrowState(tx, invoice)
		}

		event := models.EscrowEvent{
			InvoiceID:  invoiceID,
			EventType:  models.EscrowEventDisputed,
			ActorType:  models.ActorClient,
			ActorEmail: caller.Email,
			Notes:      reason,
			Metadata:   fmt.Sprintf(`{"requested_action":%q}`, requestedAction),
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyFreelancer(invoice, "Escrow disputed",
		fmt.Sprintf("The client disputed escrowed funds for invoice %s: %s", invoice.InvoiceNo, reason))
	if err := s.auditor.Append(invoiceID, "escrow.disputed", nil, map[string]interface{}{
		"actor_email":      caller.Email,
		"reason":           reason,
		"requested_action": string(requestedAction),
	}); err != nil {
		logStepFailure("escrow.dispute", "audit", invoiceID, err)
	}

	return s.loadInvoice(invoiceID)
}

// StatusResult is what GetStatus returns: the live status plus the full
// ordered event history.
type StatusResult struct {
	InvoiceID     uint                 `json:"invoice_id"`
	EscrowEnabled bool                 `json:"escrow_enabled"`
	EscrowStatus  models.EscrowStatus  `json:"escrow_status"`
	Conditions    string               `json:"conditions,omitempty"`
	ReleasedAt    *time.Time           `json:"released_at,omitempty"`
	DisputedAt    *time.Time           `json:"disputed_at,omitempty"`
	Events        []models.EscrowEvent `json:"events"`
}

// GetStatus is readable only by the invoice owner or its named client.
func (s *EscrowService) GetStatus(invoiceID uint, caller Actor) (*StatusResult, error) {
	invoice, err := s.loadInvoice(invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.UserID != caller.ID && !emailsEqual(invoice.ClientEmail, caller.Email) {
		return nil, apperr.New(apperr.Unauthorized, "not a party to this invoice")
	}

	var events []models.EscrowEvent
	if err := s.db.Where("invoice_id = ?", invoiceID).Order("id asc").Find(&events).Error; err != nil {
		return nil, err
	}

	return &StatusResult{
		InvoiceID:     invoice.ID,
		EscrowEnabled: invoice.EscrowEnabled,
		EscrowStatus:  invoice.EscrowStatus,
		Conditions:    invoice.EscrowConditions,
		ReleasedAt:    invoice.EscrowReleasedAt,
		DisputedAt:    invoice.EscrowDisputedAt,
		Events:        events,
	}, nil
}

func (s *EscrowService) authorizeClient(invoice *models.Invoice, caller Actor, clientEmail string) error {
	if !emailsEqual(clientEmail, caller.Email) || !emailsEqual(clientEmail, invoice.ClientEmail) {
		return apperr.New(apperr.Unauthorized, "client email does not match this invoice")
	}
	return nil
}

// invalidEscrowState re-reads the invoice on the given handle so the
// rejection names the status that actually beat the caller.
func (s *EscrowService) invalidEscrowState(db *gorm.DB, stale *models.Invoice) error {
	current := &models.Invoice{}
	if err := db.First(current, stale.ID).Error; err != nil {
		current = stale
	}
	if !current.EscrowEnabled {
		return apperr.InvalidStatef(string(models.EscrowStatusNone), "escrow is not enabled for this invoice")
	}
	return apperr.InvalidStatef(string(current.EscrowStatus),
		"escrow is not held; current status is %s", current.EscrowStatus)
}

func (s *EscrowService) notifyFreelancer(invoice *models.Invoice, subject, body string) {
	var owner models.User
	if err := s.db.First(&owner, invoice.UserID).Error; err != nil {
		logStepFailure("escrow", "notify", invoice.ID, err)
		return
	}
	s.notifier.Email(owner.Email, subject, body)
}

func (s *EscrowService) loadInvoice(invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := s.db.First(&invoice, invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "invoice not found")
		}
		return nil, err
	}
	return &invoice, nil
}
