package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/models"
	"github.com/yourusername/lancerpay/services"
	"gorm.io/gorm"
)

type InvoiceHandler struct {
	db           *gorm.DB
	orchestrator *services.Orchestrator
	notifier     *services.Notifier
	auditor      *services.Auditor
}

func NewInvoiceHandler(db *gorm.DB, orchestrator *services.Orchestrator, notifier *services.Notifier, auditor *services.Auditor) *InvoiceHandler {
	return &InvoiceHandler{
		db:           db,
		orchestrator: orchestrator,
		notifier:     notifier,
		auditor:      auditor,
	}
}

type CreateInvoiceRequest struct {
	ClientEmail string     `json:"client_email" binding:"required,email"`
	ClientName  string     `json:"client_name"`
	Amount      float64    `json:"amount" binding:"required,gt=0"`
	Currency    string     `json:"currency" binding:"required"`
	DueDate     *time.Time `json:"due_date"`
	Description string     `json:"description"`
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	invoiceNo := fmt.Sprintf("INV-%s", strings.ToUpper(uuid.NewString()[:8]))

	invoice := models.Invoice{
		InvoiceNo:   invoiceNo,
		UserID:      actor.ID,
		ClientEmail: strings.ToLower(strings.TrimSpace(req.ClientEmail)),
		ClientName:  req.ClientName,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      models.InvoiceStatusPending,
		DueDate:     req.DueDate,
		Description: req.Description,
	}

	if err := h.db.Create(&invoice).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invoice"})
		return
	}

	c.JSON(http.StatusCreated, invoice)
}

// GetInvoice returns an invoice to its owner or named client. Viewing is a
// read: it fires the invoice.viewed notification and an audit entry but never
// touches settlement state.
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	invoice, err := h.loadInvoice(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	isOwner := invoice.UserID == actor.ID
	isClient := strings.EqualFold(invoice.ClientEmail, actor.Email)
	if !isOwner && !isClient {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a party to this invoice"})
		return
	}

	h.notifier.Dispatch("invoice.viewed", map[string]interface{}{
		"invoice_id": invoice.ID,
		"invoice_no": invoice.InvoiceNo,
		"viewer":     actor.Email,
	})
	if err := h.auditor.Append(invoice.ID, "invoice.viewed", &actor.ID, map[string]interface{}{
		"viewer": actor.Email,
		"ip":     c.ClientIP(),
	}); err != nil {
		// viewed audits are optional; losing one is not an error
		_ = err
	}

	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	q := h.db.Where("user_id = ?", actor.ID).Order("id desc")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var invoices []models.Invoice
	if err := q.Find(&invoices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch invoices"})
		return
	}

	c.JSON(http.StatusOK, invoices)
}

// CancelInvoice voids a pending invoice. The conditional update keeps a
// racing settlement from being cancelled after the fact.
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	invoice, err := h.loadInvoice(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if invoice.UserID != actor.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the invoice owner can cancel"})
		return
	}

	res := h.db.Model(&models.Invoice{}).
		Where("id = ? AND status = ?", invoice.ID, models.InvoiceStatusPending).
		Update("status", models.InvoiceStatusCancelled)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel invoice"})
		return
	}
	if res.RowsAffected == 0 {
		var current models.Invoice
		h.db.First(&current, invoice.ID)
		c.JSON(http.StatusConflict, gin.H{
			"error":          fmt.Sprintf("invoice cannot be cancelled; current status is %s", current.Status),
			"code":           "InvalidState",
			"current_status": string(current.Status),
		})
		return
	}

	invoice.Status = models.InvoiceStatusCancelled
	c.JSON(http.StatusOK, invoice)
}

// PayInvoice marks the invoice paid and runs the settlement fan-out. Success
// is reported once the core transition commits; fan-out failures only show up
// in logs.
func (h *InvoiceHandler) PayInvoice(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	invoice, err := h.loadInvoice(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if invoice.UserID != actor.ID && !strings.EqualFold(invoice.ClientEmail, actor.Email) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a party to this invoice"})
		return
	}

	settled, err := h.orchestrator.Settle(invoice.ID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, settled)
}

// GetAuditTrail returns the invoice's signed audit history. The owner gets
// raw metadata; other permitted readers get PII masked.
func (h *InvoiceHandler) GetAuditTrail(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	invoice, err := h.loadInvoice(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	isOwner := invoice.UserID == actor.ID
	isClient := strings.EqualFold(invoice.ClientEmail, actor.Email)
	isAdmin := actor.Role == "admin"
	if !isOwner && !isClient && !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a party to this invoice"})
		return
	}

	records, err := h.auditor.Trail(invoice.ID, isOwner || isAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit trail"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice_id": invoice.ID, "events": records})
}

func (h *InvoiceHandler) loadInvoice(idParam string) (*models.Invoice, error) {
	id, err := strconv.ParseUint(idParam, 10, 64)
	if err != nil {
		return nil, apperr.New(apperr.ValidationFailed, "invalid invoice id")
	}

	var invoice models.Invoice
	if err := h.db.First(&invoice, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "invoice not found")
		}
		return nil, err
	}
	return &invoice, nil
}
