package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

// RequirePermission rejects requests whose actor lacks perm. Services repeat
// the check, so this only fails fast at the edge.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFromContext(c)
		if actor.UserID == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !actor.Can(perm) {
			response.Error(c, appErrors.WithDetails(appErrors.ErrForbidden, "insufficient permissions",
				map[string]interface{}{"required": string(perm)}))
			c.Abort()
			return
		}
		c.Next()
	}
}
