package services

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

func newTestOrchestrator(t *testing.T, db *gorm.DB, rail PayoutRail) (*Orchestrator, *mockPublisher) {
	t.Helper()
	notifier, publisher, _ := newTestNotifier(db)
	auditor := NewAuditor(db, "audit-secret")
	return NewOrchestrator(db, NewReferralEngine(db), NewSavingsService(db), rail, notifier, auditor), publisher
}

func TestSettleHappyPath(t *testing.T) {
	db := setupTestDB(t)
	rail := &mockRail{}
	orchestrator, _ := newTestOrchestrator(t, db, rail)

	referrer := createTestUser(t, db, "referrer@example.com", nil)
	owner := createTestUser(t, db, "freelancer@example.com", &referrer.ID)
	db.Model(owner).Update("stellar_address", "GTESTADDRESS")

	savings := NewSavingsService(db)
	_, err := savings.CreateGoal(owner.ID, CreateGoalInput{Title: "Laptop", TargetAmount: 10000, SavingsPercentage: 20})
	assert.NoError(t, err)

	invoice := createTestInvoice(t, db, owner, 1000, models.InvoiceStatusPending)

	settled, err := orchestrator.Settle(invoice.ID, Actor{ID: 99, Email: "client@example.com"})
	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, settled.Status)
	assert.NotNil(t, settled.PaidAt)

	t.Run("Creates Exactly One Incoming Transaction", func(t *testing.T) {
		var txs []models.Transaction
		db.Where("invoice_id = ? AND type = ?", invoice.ID, models.TransactionTypeIncoming).Find(&txs)
		assert.Len(t, txs, 1)
		assert.Equal(t, 1000.0, txs[0].Amount)
		assert.Equal(t, models.TransactionStatusCompleted, txs[0].Status)
	})

	t.Run("Allocates Savings", func(t *testing.T) {
		var goal models.SavingsGoal
		db.Where("user_id = ?", owner.ID).First(&goal)
		assert.Equal(t, 200.0, goal.CurrentAmount)
	})

	t.Run("Accrues Exactly One Referral Earning", func(t *testing.T) {
		var earnings []models.ReferralEarning
		db.Where("referrer_id = ? AND invoice_id = ?", referrer.ID, invoice.ID).Find(&earnings)
		assert.Len(t, earnings, 1)

		fee, commission := CommissionFor(1000)
		assert.Equal(t, fee, earnings[0].PlatformFee)
		assert.Equal(t, commission, earnings[0].CommissionAmount)
		assert.Equal(t, owner.ID, earnings[0].ReferredUserID)
	})

	t.Run("Initiates Payout", func(t *testing.T) {
		assert.Equal(t, 1, rail.calls)
	})

	t.Run("Emits The Paid Webhook", func(t *testing.T) {
		var events []models.WebhookEvent
		db.Where("event_type = ?", "invoice.paid").Find(&events)
		assert.Len(t, events, 1)

		var payload map[string]interface{}
		assert.NoError(t, json.Unmarshal([]byte(events[0].Payload), &payload))
		assert.Equal(t, invoice.InvoiceNo, payload["invoice_no"])
		assert.Equal(t, 1000.0, payload["amount"])
		assert.Equal(t, "client@example.com", payload["client_email"])
	})

	t.Run("Appends The Paid Audit Event", func(t *testing.T) {
		var events []models.AuditEvent
		db.Where("invoice_id = ? AND event_type = ?", invoice.ID, "invoice.paid").Find(&events)
		assert.Len(t, events, 1)
	})
}

func TestSettleRejectsNonPending(t *testing.T) {
	db := setupTestDB(t)
	orchestrator, _ := newTestOrchestrator(t, db, nil)
	owner := createTestUser(t, db, "freelancer@example.com", nil)

	t.Run("Second Settle Returns InvalidState", func(t *testing.T) {
		invoice := createTestInvoice(t, db, owner, 500, models.InvoiceStatusPending)

		_, err := orchestrator.Settle(invoice.ID, Actor{ID: owner.ID, Email: owner.Email})
		assert.NoError(t, err)

		_, err = orchestrator.Settle(invoice.ID, Actor{ID: owner.ID, Email: owner.Email})
		assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
		assert.Equal(t, string(models.InvoiceStatusPaid), apperr.StatusOf(err))

		var count int64
		db.Model(&models.Transaction{}).Where("invoice_id = ?", invoice.ID).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Cancelled Invoice Cannot Settle", func(t *testing.T) {
		invoice := createTestInvoice(t, db, owner, 500, models.InvoiceStatusCancelled)
		_, err := orchestrator.Settle(invoice.ID, Actor{ID: owner.ID, Email: owner.Email})
		assert.Equal(t, apperr.InvalidState, apperr.KindOf(err))
		assert.Equal(t, string(models.InvoiceStatusCancelled), apperr.StatusOf(err))
	})

	t.Run("Missing Invoice Is NotFound", func(t *testing.T) {
		_, err := orchestrator.Settle(999999, Actor{ID: owner.ID, Email: owner.Email})
		assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
	})
}

func TestSettleConcurrent(t *testing.T) {
	db := setupTestDB(t)
	orchestrator, _ := newTestOrchestrator(t, db, nil)
	owner := createTestUser(t, db, "freelancer@example.com", nil)
	invoice := createTestInvoice(t, db, owner, 750, models.InvoiceStatusPending)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = orchestrator.Settle(invoice.ID, Actor{ID: owner.ID, Email: owner.Email})
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if apperr.KindOf(err) == apperr.InvalidState {
			losers++
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	var count int64
	db.Model(&models.Transaction{}).
		Where("invoice_id = ? AND type = ?", invoice.ID, models.TransactionTypeIncoming).Count(&count)
	assert.Equal(t, int64(1), count)

	var got models.Invoice
	db.First(&got, invoice.ID)
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
}

func TestSettleHoldsEscrow(t *testing.T) {
	db := setupTestDB(t)
	orchestrator, _ := newTestOrchestrator(t, db, nil)
	owner := createTestUser(t, db, "freelancer@example.com", nil)

	invoice := createTestInvoice(t, db, owner, 300, models.InvoiceStatusPending)
	db.Model(invoice).Updates(map[string]interface{}{
		"escrow_enabled":    true,
		"escrow_conditions": "deliver the site",
	})

	settled, err := orchestrator.Settle(invoice.ID, Actor{ID: 42, Email: "client@example.com"})
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, settled.EscrowStatus)

	var events []models.EscrowEvent
	db.Where("invoice_id = ? AND event_type = ?", invoice.ID, models.EscrowEventHeld).Find(&events)
	assert.Len(t, events, 1)
	assert.Equal(t, models.ActorClient, events[0].ActorType)

	t.Run("Owner-Triggered Settlement Labels The Freelancer", func(t *testing.T) {
		second := createTestInvoice(t, db, owner, 300, models.InvoiceStatusPending)
		db.Model(second).Update("escrow_enabled", true)

		_, err := orchestrator.Settle(second.ID, Actor{ID: owner.ID, Email: owner.Email})
		assert.NoError(t, err)

		var events []models.EscrowEvent
		db.Where("invoice_id = ? AND event_type = ?", second.ID, models.EscrowEventHeld).Find(&events)
		assert.Len(t, events, 1)
		assert.Equal(t, models.ActorFreelancer, events[0].ActorType)
	})
}

func TestSettleSurvivesFanoutFailure(t *testing.T) {
	db := setupTestDB(t)
	rail := &mockRail{
		InitiatePayoutFunc: func(destination string, amount float64, currency string) (string, error) {
			return "", errors.New("horizon unreachable")
		},
	}
	orchestrator, _ := newTestOrchestrator(t, db, rail)

	owner := createTestUser(t, db, "freelancer@example.com", nil)
	db.Model(owner).Update("stellar_address", "GTESTADDRESS")
	invoice := createTestInvoice(t, db, owner, 200, models.InvoiceStatusPending)

	settled, err := orchestrator.Settle(invoice.ID, Actor{ID: owner.ID, Email: owner.Email})
	assert.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, settled.Status)
	assert.Equal(t, 1, rail.calls)

	// The payout failure never rolls back the committed transition.
	var got models.Invoice
	db.First(&got, invoice.ID)
	assert.Equal(t, models.InvoiceStatusPaid, got.Status)
}
