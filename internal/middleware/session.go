package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

// appUserKey is the gin context key the authenticated user travels under.
const appUserKey = "app_user"

// SessionVerifier checks a session token and returns the app user ID.
type SessionVerifier interface {
	Verify(token string) (string, bool)
}

// AppUserStore loads app user accounts.
type AppUserStore interface {
	GetAppUser(ctx context.Context, appUserID string) (*models.AppUser, error)
}

// SessionAuth creates middleware that resolves the session cookie to an app
// user, rejecting requests without a valid session.
func SessionAuth(sessions SessionVerifier, store AppUserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token, err := c.Cookie(services.SessionCookieName)
		if err != nil || token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		appUserID, ok := sessions.Verify(token)
		if !ok {
			log.Debug(ctx, "Rejected invalid session token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		user, err := store.GetAppUser(ctx, appUserID)
		if err != nil {
			log.Warn(ctx, "Session references unknown app user",
				"app_user_id", appUserID,
				"error", err,
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		c.Set(appUserKey, user)
		c.Next()
	}
}

// CurrentAppUser returns the authenticated app user set by SessionAuth.
func CurrentAppUser(c *gin.Context) (*models.AppUser, bool) {
	value, exists := c.Get(appUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.AppUser)
	return user, ok
}
