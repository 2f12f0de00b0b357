package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/lancerpay/services"
)

type ReferralHandler struct {
	referrals *services.ReferralEngine
}

func NewReferralHandler(referrals *services.ReferralEngine) *ReferralHandler {
	return &ReferralHandler{referrals: referrals}
}

// ListEarnings returns the caller's referral earnings, newest first.
func (h *ReferralHandler) ListEarnings(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		respondUnauthenticated(c)
		return
	}

	earnings, err := h.referrals.ListForReferrer(actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	total := 0.0
	for _, e := range earnings {
		total += e.CommissionAmount
	}

	c.JSON(http.StatusOK, gin.H{"earnings": earnings, "total_earned": total})
}
