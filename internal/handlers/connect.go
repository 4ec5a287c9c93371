package handlers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"

	"slack-app-connect/internal/log"
	"slack-app-connect/internal/middleware"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

// ConnectStore is the persistence surface account linking needs.
type ConnectStore interface {
	GetUserMappingByNonce(ctx context.Context, nonce string) (*models.UserMapping, error)
	SaveUserMapping(ctx context.Context, mapping *models.UserMapping) error
}

// ConnectHandler completes account linking: the nonce from the Slack-side
// message identifies the mapping, the session identifies the app user.
type ConnectHandler struct {
	store ConnectStore
}

func NewConnectHandler(store ConnectStore) *ConnectHandler {
	return &ConnectHandler{store: store}
}

// HandleConnect processes GET /slack/connect/:nonce/. Route sits behind
// session auth.
func (h *ConnectHandler) HandleConnect(c *gin.Context) {
	ctx := c.Request.Context()

	user, ok := middleware.CurrentAppUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	mapping, err := h.store.GetUserMappingByNonce(ctx, c.Param("nonce"))
	if err != nil {
		if errors.Is(err, services.ErrMappingNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		log.Error(ctx, "Failed to look up mapping by nonce", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	mapping.AppUserID = user.ID
	if err := h.store.SaveUserMapping(ctx, mapping); err != nil {
		log.Error(ctx, "Failed to link mapping",
			"slack_user_id", mapping.SlackUserID,
			"app_user_id", user.ID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	log.Info(ctx, "Slack account linked",
		"slack_user_id", mapping.SlackUserID,
		"app_user_id", user.ID,
	)

	confirmationHTML := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<title>Slack account linked</title>
	<style>
		body { font-family: -apple-system, sans-serif; text-align: center; padding: 50px; }
		.success { color: #2eb67d; font-size: 48px; }
	</style>
</head>
<body>
	<div class="success">&#10003;</div>
	<h1>Slack account linked</h1>
	<p>Your Slack account is now connected to <strong>%s</strong>. You can close this window and return to Slack.</p>
</body>
</html>`, html.EscapeString(user.Username))

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(confirmationHTML))
}
