package services

import (
	"errors"

	"github.com/yourusername/lancerpay/models"
	"gorm.io/gorm"
)

// Commission terms: the platform keeps 10% of every settled invoice and pays
// the referrer 20% of that fee.
const (
	PlatformFeeRate        = 0.10
	ReferralCommissionRate = 0.20
)

// ReferralEngine accrues commissions for referrers when invoices of the
// users they referred settle.
type ReferralEngine struct {
	db *gorm.DB
}

func NewReferralEngine(db *gorm.DB) *ReferralEngine {
	return &ReferralEngine{db: db}
}

// CommissionFor returns (platform fee, commission) for an invoice amount.
func CommissionFor(amount float64) (float64, float64) {
	fee := amount * PlatformFeeRate
	return fee, fee * ReferralCommissionRate
}

// AccrueForInvoice creates the earning row for the owner's referrer, if any.
// It is safe to re-run: the (referrer, invoice) unique index turns a repeat
// insert into a no-op.
func (e *ReferralEngine) AccrueForInvoice(invoice *models.Invoice, owner *models.User) error {
	if owner.ReferredByID == nil {
		return nil
	}

	fee, commission := CommissionFor(invoice.Amount)
	earning := models.ReferralEarning{
		ReferrerID:       *owner.ReferredByID,
		ReferredUserID:   owner.ID,
		InvoiceID:        invoice.ID,
		CommissionAmount: commission,
		PlatformFee:      fee,
		Currency:         invoice.Currency,
		Status:           models.EarningStatusEarned,
	}

	if err := e.db.Create(&earning).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil // already accrued for this settlement
		}
		return err
	}
	return nil
}

// ListForReferrer returns a referrer's earnings, newest first.
func (e *ReferralEngine) ListForReferrer(referrerID uint) ([]models.ReferralEarning, error) {
	var earnings []models.ReferralEarning
	err := e.db.Where("referrer_id = ?", referrerID).Order("id desc").Find(&earnings).Error
	return earnings, err
}
