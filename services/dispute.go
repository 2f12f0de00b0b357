package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

// DisputeService governs the open → resolved|closed lifecycle of a
// disagreement over a paid invoice. At most one dispute per invoice; the
// unique index backs that up under concurrent creation.
type DisputeService struct {
	db          *gorm.DB
	notifier    *Notifier
	auditor     *Auditor
	adminEmails map[string]bool
}

func NewDisputeService(db *gorm.DB, notifier *Notifier, auditor *Auditor, adminEmails []string) *DisputeService {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[normalizeEmail(e)] = true
	}
	return &DisputeService{db: db, notifier: notifier, auditor: auditor, adminEmails: admins}
}

func (s *DisputeService) isAdmin(email string) bool {
	return s.adminEmails[normalizeEmail(email)]
}

type CreateDisputeInput struct {
	InvoiceID       uint
	Reason          string
	RequestedAction models.DisputeAction
	Evidence        []string
}

// Create opens a dispute over a paid invoice. The initiator must be the
// invoice owner or its client; the invoice flips to disputed and the reason
// becomes the first message, all in one transaction.
func (s *DisputeService) Create(caller Actor, in CreateDisputeInput) (*models.Dispute, error) {
	if in.Reason == "" {
		return nil, apperr.New(apperr.ValidationFailed, "a dispute reason is required")
	}
	if in.RequestedAction != models.DisputeActionRefund && in.RequestedAction != models.DisputeActionRevision {
		return nil, apperr.New(apperr.ValidationFailed, "requested action must be refund or revision")
	}

	var invoice models.Invoice
	if err := s.db.First(&invoice, in.InvoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "invoice not found")
		}
		return nil, err
	}

	var initiatedBy models.ActorType
	switch {
	case invoice.UserID == caller.ID:
		initiatedBy = models.ActorFreelancer
	case emailsEqual(invoice.ClientEmail, caller.Email):
		initiatedBy = models.ActorClient
	default:
		return nil, apperr.New(apperr.Unauthorized, "not a party to this invoice")
	}

	if invoice.Status != models.InvoiceStatusPaid {
		return nil, apperr.InvalidStatef(string(invoice.Status), "only a paid invoice can be disputed")
	}

	dispute := models.Dispute{
		InvoiceID:       invoice.ID,
		InitiatedBy:     initiatedBy,
		InitiatorEmail:  caller.Email,
		Reason:          in.Reason,
		RequestedAction: in.RequestedAction,
		Status:          models.DisputeStatusOpen,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&dispute).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.New(apperr.Conflict, "a dispute already exists for this invoice")
			}
			return err
		}

		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", invoice.ID, models.InvoiceStatusPaid).
			Update("status", models.InvoiceStatusDisputed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidStatef(string(invoice.Status), "invoice is no longer paid")
		}

		message := models.DisputeMessage{
			DisputeID:   dispute.ID,
			SenderType:  initiatedBy,
			SenderEmail: caller.Email,
			Message:     in.Reason,
			Attachments: encodeAttachments(in.Evidence),
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyOtherParty(&invoice, initiatedBy, "Invoice disputed",
		fmt.Sprintf("Invoice %s has been disputed: %s", invoice.InvoiceNo, in.Reason))
	s.notifier.Dispatch("invoice.disputed", map[string]interface{}{
		"invoice_id":       invoice.ID,
		"invoice_no":       invoice.InvoiceNo,
		"dispute_id":       dispute.ID,
		"initiated_by":     string(initiatedBy),
		"requested_action": string(in.RequestedAction),
	})
	if err := s.auditor.Append(invoice.ID, "invoice.disputed", actorRef(caller), map[string]interface{}{
		"dispute_id":       dispute.ID,
		"initiated_by":     string(initiatedBy),
		"requested_action": string(in.RequestedAction),
	}); err != nil {
		logStepFailure("dispute.create", "audit", invoice.ID, err)
	}

	return &dispute, nil
}

// AddMessage appends to an open dispute. Sender type resolution: admin
// allowlist first, then invoice owner, then client; anyone else is rejected.
func (s *DisputeService) AddMessage(disputeID uint, caller Actor, message string, attachments []string) (*models.DisputeMessage, error) {
	if message == "" {
		return nil, apperr.New(apperr.ValidationFailed, "message body is required")
	}

	dispute, invoice, err := s.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}

	var senderType models.ActorType
	switch {
	case s.isAdmin(caller.Email):
		senderType = models.ActorAdmin
	case invoice.UserID == caller.ID:
		senderType = models.ActorFreelancer
	case emailsEqual(invoice.ClientEmail, caller.Email):
		senderType = models.ActorClient
	default:
		return nil, apperr.New(apperr.Unauthorized, "not a party to this dispute")
	}

	if dispute.Status != models.DisputeStatusOpen {
		return nil, apperr.InvalidStatef(string(dispute.Status), "dispute is no longer open")
	}

	msg := models.DisputeMessage{
		DisputeID:   dispute.ID,
		SenderType:  senderType,
		SenderEmail: caller.Email,
		Message:     message,
		Attachments: encodeAttachments(attachments),
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	if senderType != models.ActorAdmin {
		s.notifyOtherParty(invoice, senderType, "New dispute message",
			fmt.Sprintf("New message on the dispute for invoice %s.", invoice.InvoiceNo))
	}

	return &msg, nil
}

// Get returns a dispute with its messages. Non-admin callers must be the
// invoice owner, the client, or the original initiator.
func (s *DisputeService) Get(disputeID uint, caller Actor) (*models.Dispute, error) {
	dispute, invoice, err := s.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	if !s.canSee(dispute, invoice, caller) {
		return nil, apperr.New(apperr.Unauthorized, "not a party to this dispute")
	}

	if err := s.db.Where("dispute_id = ?", dispute.ID).Order("id asc").Find(&dispute.Messages).Error; err != nil {
		return nil, err
	}
	dispute.Invoice = *invoice
	return dispute, nil
}

// List returns disputes visible to the caller, optionally filtered by status.
// Admins see everything.
func (s *DisputeService) List(caller Actor, status models.DisputeStatus) ([]models.Dispute, error) {
	q := s.db.Model(&models.Dispute{}).Preload("Invoice").Order("disputes.id desc")
	if status != "" {
		q = q.Where("disputes.status = ?", status)
	}

	if !s.isAdmin(caller.Email) {
		q = q.Joins("JOIN invoices ON invoices.id = disputes.invoice_id").
			Where("invoices.user_id = ? OR LOWER(invoices.client_email) = LOWER(?) OR LOWER(disputes.initiator_email) = LOWER(?)",
				caller.ID, caller.Email, caller.Email)
	}

	var disputes []models.Dispute
	if err := q.Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}

type ResolveOutcome string

const (
	OutcomeRelease ResolveOutcome = "release" // disputed escrow goes to the freelancer
	OutcomeRefund  ResolveOutcome = "refund"  // funds go back to the client (handled off-ledger)
	OutcomeNone    ResolveOutcome = "none"
)

// Resolve closes out an open dispute. Admin only. A release outcome moves
// disputed escrow to released, which is the only way out of escrow "disputed".
func (s *DisputeService) Resolve(disputeID uint, caller Actor, resolution string, outcome ResolveOutcome) (*models.Dispute, error) {
	if !s.isAdmin(caller.Email) {
		return nil, apperr.New(apperr.Unauthorized, "only an admin can resolve disputes")
	}
	if resolution == "" {
		return nil, apperr.New(apperr.ValidationFailed, "a resolution summary is required")
	}
	switch outcome {
	case OutcomeRelease, OutcomeRefund, OutcomeNone:
	default:
		return nil, apperr.New(apperr.ValidationFailed, "outcome must be release, refund or none")
	}

	dispute, invoice, err := s.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Dispute{}).
			Where("id = ? AND status = ?", dispute.ID, models.DisputeStatusOpen).
			Updates(map[string]interface{}{
				"status":      models.DisputeStatusResolved,
				"resolution":  resolution,
				"resolved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidStatef(string(dispute.Status), "dispute is no longer open")
		}

		if outcome == OutcomeRelease && invoice.EscrowStatus == models.EscrowStatusDisputed {
			res := tx.Model(&models.Invoice{}).
				Where("id = ? AND escrow_status = ?", invoice.ID, models.EscrowStatusDisputed).
				Updates(map[string]interface{}{
					"escrow_status":      models.EscrowStatusReleased,
					"escrow_released_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				event := models.EscrowEvent{
					InvoiceID:  invoice.ID,
					EventType:  models.EscrowEventReleased,
					ActorType:  models.ActorAdmin,
					ActorEmail: caller.Email,
					Notes:      resolution,
				}
				if err := tx.Create(&event).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var owner models.User
	if err := s.db.First(&owner, invoice.UserID).Error; err == nil {
		s.notifier.Email(owner.Email, "Dispute resolved",
			fmt.Sprintf("The dispute for invoice %s was resolved: %s", invoice.InvoiceNo, resolution))
	}
	s.notifier.Email(invoice.ClientEmail, "Dispute resolved",
		fmt.Sprintf("The dispute for invoice %s was resolved: %s", invoice.InvoiceNo, resolution))
	if err := s.auditor.Append(invoice.ID, "dispute.resolved", actorRef(caller), map[string]interface{}{
		"dispute_id": dispute.ID,
		"outcome":    string(outcome),
	}); err != nil {
		logStepFailure("dispute.resolve", "audit", invoice.ID, err)
	}

	return s.reload(dispute.ID)
}

func (s *DisputeService) canSee(dispute *models.Dispute, invoice *models.Invoice, caller Actor) bool {
	if s.isAdmin(caller.Email) {
		return true
	}
	return invoice.UserID == caller.ID ||
		emailsEqual(invoice.ClientEmail, caller.Email) ||
		emailsEqual(dispute.InitiatorEmail, caller.Email)
}

func (s *DisputeService) loadDispute(disputeID uint) (*models.Dispute, *models.Invoice, error) {
	var dispute models.Dispute
	if err := s.db.First(&dispute, disputeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.New(apperr.NotFound, "dispute not found")
		}
		return nil, nil, err
	}

	var invoice models.Invoice
	if err := s.db.First(&invoice, dispute.InvoiceID).Error; err != nil {
		return nil, nil, err
	}
	return &dispute, &invoice, nil
}

func (s *DisputeService) reload(disputeID uint) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := s.db.Preload("Messages").First(&dispute, disputeID).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// notifyOtherParty emails whichever side of the invoice did not act.
func (s *DisputeService) notifyOtherParty(invoice *models.Invoice, actor models.ActorType, subject, body string) {
	if actor == models.ActorClient {
		var owner models.User
		if err := s.db.First(&owner, invoice.UserID).Error; err != nil {
			logStepFailure("dispute", "notify", invoice.ID, err)
			return
		}
		s.notifier.Email(owner.Email, subject, body)
		return
	}
	s.notifier.Email(invoice.ClientEmail, subject, body)
}

func encodeAttachments(attachments []string) string {
	if len(attachments) == 0 {
		return ""
	}
	out, err := json.Marshal(attachments)
	if err != nil {
		return ""
	}
	return string(out)
}

func actorRef(caller Actor) *uint {
	if caller.ID == 0 {
		return nil
	}
	id := caller.ID
	return &id
}
