package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
	"github.com/noah-isme/maintenance-portal-api/pkg/response"
)

// RequireRoles rejects callers whose verified role is not listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		actor, ok := Actor(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[actor.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(actor.Role)+" may not access this resource"))
			c.Abort()
			return
		}
		c.Next()
	}
}
