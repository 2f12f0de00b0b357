package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/lancerpay/models"
	"github.com/yourusername/lancerpay/services"
)

type DisputeHandler struct {
	disputes *services.DisputeService
}

func NewDisputeHandler(disputes *services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

type CreateDisputeRequest struct {
	InvoiceID       uint                 `json:"invoice_id" binding:"required"`
	Reason          string               `json:"reason" binding:"required"`
	RequestedAction models.DisputeAction `json:"requested_action" binding:"required"`
	Evidence        []string             `json:"evidence"`
}

func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	var req CreateDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	dispute, err := h.disputes.Create(actor, services.CreateDisputeInput{
		InvoiceID:       req.InvoiceID,
		Reason:          req.Reason,
		RequestedAction: req.RequestedAction,
		Evidence:        req.Evidence,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

type AddMessageRequest struct {
	Message     string   `json:"message" binding:"required"`
	Attachments []string `json:"attachments"`
}

func (h *DisputeHandler) AddMessage(c *gin.Context) {
	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	disputeID, ok := disputeIDParam(c)
	if !ok {
		return
	}

	msg, err := h.disputes.AddMessage(disputeID, actor, req.Message, req.Attachments)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *DisputeHandler) GetDispute(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	disputeID, ok := disputeIDParam(c)
	if !ok {
		return
	}

	dispute, err := h.disputes.Get(disputeID, actor)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	disputes, err := h.disputes.List(actor, models.DisputeStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, disputes)
}

type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Outcome    string `json:"outcome" binding:"required"`
}

func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	var req ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	disputeID, ok := disputeIDParam(c)
	if !ok {
		return
	}

	dispute, err := h.disputes.Resolve(disputeID, actor, req.Resolution, services.ResolveOutcome(req.Outcome))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

func disputeIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dispute id"})
		return 0, false
	}
	return uint(id), true
}
