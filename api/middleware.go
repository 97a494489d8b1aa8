package api

import (
	"github.com/gin-gonic/gin"

	"github.com/chxlky/kanban-api/internal/models"
)

const userKey = "user"

// RequireAuth rejects requests without a valid bearer token and stores the
// authenticated user on the context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.Auth.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, "Error authenticating request", err)
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	return c.MustGet(userKey).(*models.User)
}
