package services

import (
	"errors"
	"log"
	"time"

	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

// PayoutRail initiates an external-rail payout for settled funds.
// Fire-and-forget from the orchestrator's point of view.
type PayoutRail interface {
	InitiatePayout(destination string, amount float64, currency string) (txHash string, err error)
}

// Orchestrator drives the pending→paid transition and the fan-out that
// follows. Only the core transition is transactional and authoritative for
// "is this invoice paid"; every fan-out step is best-effort and idempotent so
// a reconciliation job can re-drive it.
type Orchestrator struct {
	db        *gorm.DB
	referrals *ReferralEngine
	savings   *SavingsService
	rail      PayoutRail
	notifier  *Notifier
	auditor   *Auditor
}

func NewOrchestrator(db *gorm.DB, referrals *ReferralEngine, savings *SavingsService, rail PayoutRail, notifier *Notifier, auditor *Auditor) *Orchestrator {
	return &Orchestrator{
		db:        db,
		referrals: referrals,
		savings:   savings,
		rail:      rail,
		notifier:  notifier,
		auditor:   auditor,
	}
}

// settleContext carries the committed state into the fan-out steps.
type settleContext struct {
	invoice *models.Invoice
	owner   *models.User
	actor   Actor
}

// fanoutStep is one best-effort side effect of a settlement. All steps share
// the same failure policy: log and continue.
type fanoutStep struct {
	name string
	run  func(*settleContext) error
}

// Settle marks the invoice paid exactly once and runs the dependent side
// effects. Success is reported as soon as the core transition commits; a
// concurrent second caller gets InvalidState naming the status that won.
func (o *Orchestrator) Settle(invoiceID uint, actor Actor) (*models.Invoice, error) {
	now := time.Now().UTC()

	err := o.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", invoiceID, models.InvoiceStatusPending).
			Updates(map[string]interface{}{
				"status":  models.InvoiceStatusPaid,
				"paid_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Invoice
			if err := tx.First(&current, invoiceID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.New(apperr.NotFound, "invoice not found")
				}
				return err
			}
			return apperr.InvalidStatef(string(current.Status),
				"invoice cannot be settled; current status is %s", current.Status)
		}

		var invoice models.Invoice
		if err := tx.First(&invoice, invoiceID).Error; err != nil {
			return err
		}

		// Payment of an escrow-enabled invoice puts the funds on hold.
		if invoice.EscrowEnabled {
			if err := tx.Model(&invoice).Update("escrow_status", models.EscrowStatusHeld).Error; err != nil {
				return err
			}
			actorType := models.ActorClient
			if invoice.UserID == actor.ID {
				actorType = models.ActorFreelancer
			}
			event := models.EscrowEvent{
				InvoiceID:  invoice.ID,
				EventType:  models.EscrowEventHeld,
				ActorType:  actorType,
				ActorEmail: actor.Email,
				Notes:      "funds held on payment",
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
		}

		invID := invoice.ID
		transaction := models.Transaction{
			UserID:    invoice.UserID,
			Type:      models.TransactionTypeIncoming,
			Status:    models.TransactionStatusCompleted,
			Amount:    invoice.Amount,
			Currency:  invoice.Currency,
			InvoiceID: &invID,
		}
		return tx.Create(&transaction).Error
	})
	if err != nil {
		return nil, err
	}

	// Re-read the committed state with the owning user.
	var invoice models.Invoice
	if err := o.db.Preload("User").First(&invoice, invoiceID).Error; err != nil {
		return nil, err
	}

	sc := &settleContext{invoice: &invoice, owner: &invoice.User, actor: actor}
	for _, step := range o.fanout() {
		if err := step.run(sc); err != nil {
			logStepFailure("settlement", step.name, invoiceID, err)
		}
	}

	return &invoice, nil
}

// fanout is the declared list of post-commit steps, in order. Each is safe to
// retry: referral accrual and savings allocations are deduplicated by unique
// (party, invoice) indexes, payout/webhook/audit are append-or-ignore on the
// receiving side.
func (o *Orchestrator) fanout() []fanoutStep {
	return []fanoutStep{
		{name: "referral", run: o.stepReferral},
		{name: "savings", run: o.stepSavings},
		{name: "payout", run: o.stepPayout},
		{name: "webhook", run: o.stepWebhook},
		{name: "audit", run: o.stepAudit},
	}
}

func (o *Orchestrator) stepReferral(sc *settleContext) error {
	return o.referrals.AccrueForInvoice(sc.invoice, sc.owner)
}

func (o *Orchestrator) stepSavings(sc *settleContext) error {
	_, _, err := o.savings.ApplySettlement(sc.owner.ID, sc.invoice.ID, sc.invoice.Amount)
	return err
}

func (o *Orchestrator) stepPayout(sc *settleContext) error {
	if o.rail == nil || sc.owner.StellarAddress == "" {
		return nil
	}
	txHash, err := o.rail.InitiatePayout(sc.owner.StellarAddress, sc.invoice.Amount, sc.invoice.Currency)
	if err != nil {
		return err
	}
	log.Printf("settlement: payout initiated for invoice %d (tx %s)", sc.invoice.ID, txHash)
	return nil
}

func (o *Orchestrator) stepWebhook(sc *settleContext) error {
	o.notifier.Dispatch("invoice.paid", map[string]interface{}{
		"invoice_id":   sc.invoice.ID,
		"invoice_no":   sc.invoice.InvoiceNo,
		"amount":       sc.invoice.Amount,
		"currency":     sc.invoice.Currency,
		"client_email": sc.invoice.ClientEmail,
		"client_name":  sc.invoice.ClientName,
		"paid_at":      sc.invoice.PaidAt,
	})
	return nil
}

func (o *Orchestrator) stepAudit(sc *settleContext) error {
	return o.auditor.Append(sc.invoice.ID, "invoice.paid", actorRef(sc.actor), map[string]interface{}{
		"amount":   sc.invoice.Amount,
		"currency": sc.invoice.Currency,
	})
}

func logStepFailure(operation, step string, invoiceID uint, err error) {
	log.Printf("%s: step %s failed for invoice %d: %v", operation, step, invoiceID, err)
}
