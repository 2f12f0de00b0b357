package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/lancerpay/apperr"
	"github.com/yourusername/lancerpay/services"
)

// currentActor pulls the authenticated identity the JWT middleware stored.
func currentActor(c *gin.Context) (services.Actor, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		return services.Actor{}, false
	}
	id, ok := userID.(uint)
	if !ok {
		return services.Actor{}, false
	}

	actor := services.Actor{ID: id}
	if email, exists := c.Get("email"); exists {
		actor.Email, _ = email.(string)
	}
	if role, exists := c.Get("role"); exists {
		actor.Role, _ = role.(string)
	}
	return actor, true
}

// respondError maps a service error onto the wire. InvalidState responses
// carry the status that made the operation invalid.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	body := gin.H{"error": err.Error()}
	if kind := apperr.KindOf(err); kind != "" {
		body["code"] = string(kind)
	}
	if current := apperr.StatusOf(err); current != "" {
		body["current_status"] = current
	}
	c.JSON(status, body)
}

func respondUnauthenticated(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "code": string(apperr.Unauthenticated)})
}
