package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/lancerpay/models"
	"github.com/yourusername/lancerpay/services"
)

type EscrowHandler struct {
	escrow *services.EscrowService
}

func NewEscrowHandler(escrow *services.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

type EnableEscrowRequest struct {
	Conditions string `json:"conditions" binding:"required"`
}

func (h *EscrowHandler) EnableEscrow(c *gin.Context) {
	var req EnableEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	invoiceID, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	invoice, err := h.escrow.Enable(invoiceID, actor, req.Conditions)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

type ReleaseEscrowRequest struct {
	ClientEmail string `json:"client_email" binding:"required,email"`
	Notes       string `json:"notes"`
}

func (h *EscrowHandler) ReleaseEscrow(c *gin.Context) {
	var req ReleaseEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	invoiceID, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	invoice, err := h.escrow.Release(invoiceID, actor, req.ClientEmail, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

type DisputeEscrowRequest struct {
	ClientEmail     string               `json:"client_email" binding:"required,email"`
	Reason          string               `json:"reason" binding:"required"`
	RequestedAction models.DisputeAction `json:"requested_action" binding:"required"`
}

func (h *EscrowHandler) DisputeEscrow(c *gin.Context) {
	var req DisputeEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	invoiceID, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	invoice, err := h.escrow.OpenDispute(invoiceID, actor, req.ClientEmail, req.Reason, req.RequestedAction)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

func (h *EscrowHandler) GetEscrowStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	invoiceID, ok := invoiceIDParam(c)
	if !ok {
		return
	}

	status, err := h.escrow.GetStatus(invoiceID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func invoiceIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid invoice id"})
		return 0, false
	}
	return uint(id), true
}
