package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"slack-app-connect/internal/config"
	"slack-app-connect/internal/log"
)

// CloudTasksAuthMiddleware creates middleware that verifies the static shared
// secret Cloud Tasks attaches to worker requests.
func CloudTasksAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		providedSecret := c.GetHeader("X-Cloud-Tasks-Secret")
		if providedSecret == "" {
			log.Error(ctx, "Missing X-Cloud-Tasks-Secret header for Cloud Tasks request")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		if providedSecret != cfg.CloudTasksSecret {
			log.Error(ctx, "Invalid Cloud Tasks secret provided")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			c.Abort()
			return
		}

		log.Debug(ctx, "Cloud Tasks authentication successful")
		c.Next()
	}
}
