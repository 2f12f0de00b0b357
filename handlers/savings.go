package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/lancerpay/services"
)

type SavingsHandler struct {
	savings *services.SavingsService
}

func NewSavingsHandler(savings *services.SavingsService) *SavingsHandler {
	return &SavingsHandler{savings: savings}
}

type CreateGoalRequest struct {
	Title             string  `json:"title" binding:"required"`
	TargetAmount      float64 `json:"target_amount" binding:"required,gt=0"`
	SavingsPercentage int     `json:"savings_percentage" binding:"required"`
}

func (h *SavingsHandler) CreateGoal(c *gin.Context) {
	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	goal, err := h.savings.CreateGoal(actor.ID, services.CreateGoalInput{
		Title:             req.Title,
		TargetAmount:      req.TargetAmount,
		SavingsPercentage: req.SavingsPercentage,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, goal)
}

func (h *SavingsHandler) ListGoals(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	goals, err := h.savings.ListGoals(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, goals)
}

type UpdateGoalRequest struct {
	Title             *string  `json:"title"`
	TargetAmount      *float64 `json:"target_amount"`
	SavingsPercentage *int     `json:"savings_percentage"`
	IsActive          *bool    `json:"is_active"`
}

func (h *SavingsHandler) UpdateGoal(c *gin.Context) {
	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}

	goal, err := h.savings.UpdateGoal(actor.ID, goalID, services.UpdateGoalInput{
		Title:             req.Title,
		TargetAmount:      req.TargetAmount,
		SavingsPercentage: req.SavingsPercentage,
		IsActive:          req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, goal)
}

func (h *SavingsHandler) ReleaseGoal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}

	released, err := h.savings.ReleaseGoal(actor.ID, goalID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal_id": goalID, "released_amount": released})
}

func (h *SavingsHandler) DeleteGoal(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}
	goalID, ok := goalIDParam(c)
	if !ok {
		return
	}

	if err := h.savings.DeleteGoal(actor.ID, goalID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Goal deleted"})
}

func goalIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid goal id"})
		return 0, false
	}
	return uint(id), true
}
