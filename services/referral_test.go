package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/lancerpay/models"
)

func TestCommissionFor(t *testing.T) {
	fee, commission := CommissionFor(1000)
	assert.Equal(t, 100.0, fee)
	assert.Equal(t, 20.0, commission)
}

func TestAccrueForInvoice(t *testing.T) {
	db := setupTestDB(t)
	engine := NewReferralEngine(db)

	referrer := createTestUser(t, db, "referrer@example.com", nil)
	owner := createTestUser(t, db, "freelancer@example.com", &referrer.ID)
	invoice := createTestInvoice(t, db, owner, 1000, models.InvoiceStatusPaid)

	t.Run("Accrues Once", func(t *testing.T) {
		assert.NoError(t, engine.AccrueForInvoice(invoice, owner))

		var earnings []models.ReferralEarning
		db.Find(&earnings)
		assert.Len(t, earnings, 1)
		assert.Equal(t, referrer.ID, earnings[0].ReferrerID)
		assert.Equal(t, 20.0, earnings[0].CommissionAmount)
		assert.Equal(t, models.EarningStatusEarned, earnings[0].Status)
	})

	t.Run("Retry Is A No Op", func(t *testing.T) {
		assert.NoError(t, engine.AccrueForInvoice(invoice, owner))

		var count int64
		db.Model(&models.ReferralEarning{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})

	t.Run("No Referrer Means No Earning", func(t *testing.T) {
		solo := createTestUser(t, db, "solo@example.com", nil)
		soloInvoice := createTestInvoice(t, db, solo, 500, models.InvoiceStatusPaid)

		assert.NoError(t, engine.AccrueForInvoice(soloInvoice, solo))

		var count int64
		db.Model(&models.ReferralEarning{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
}

func TestListForReferrer(t *testing.T) {
	db := setupTestDB(t)
	engine := NewReferralEngine(db)

	referrer := createTestUser(t, db, "referrer@example.com", nil)
	owner := createTestUser(t, db, "freelancer@example.com", &referrer.ID)

	for i := 0; i < 3; i++ {
		invoice := createTestInvoice(t, db, owner, float64(100*(i+1)), models.InvoiceStatusPaid)
		assert.NoError(t, engine.AccrueForInvoice(invoice, owner))
	}

	earnings, err := engine.ListForReferrer(referrer.ID)
	assert.NoError(t, err)
	assert.Len(t, earnings, 3)

	other, err := engine.ListForReferrer(owner.ID)
	assert.NoError(t, err)
	assert.Empty(t, other)
}
