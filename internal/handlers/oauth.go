package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"slack-app-connect/internal/config"
	"slack-app-connect/internal/log"
	"slack-app-connect/internal/middleware"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

// OAuthFlow is the install/login orchestration the callbacks delegate to.
type OAuthFlow interface {
	CompleteInstall(ctx context.Context, code, redirectURI, installerAppUserID string) (*models.Workspace, error)
	CompleteLogin(ctx context.Context, code, redirectURI string) (*models.AppUser, error)
}

// SessionIssuer mints session tokens for logged-in app users.
type SessionIssuer interface {
	Issue(appUserID string) (string, time.Time)
}

// OAuthHandler serves the Slack OAuth redirect callbacks.
type OAuthHandler struct {
	flow     OAuthFlow
	sessions SessionIssuer
	verifier *services.SignatureVerifier
	cfg      *config.Config
}

func NewOAuthHandler(
	flow OAuthFlow, sessions SessionIssuer, verifier *services.SignatureVerifier, cfg *config.Config,
) *OAuthHandler {
	return &OAuthHandler{
		flow:     flow,
		sessions: sessions,
		verifier: verifier,
		cfg:      cfg,
	}
}

// HandleInstallCallback processes GET /slack/install/. The route sits behind
// session auth; the installing app user becomes a workspace owner. Failures
// redirect without persisting anything.
func (h *OAuthHandler) HandleInstallCallback(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.verified(c) {
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		log.Warn(ctx, "Slack install callback returned an error", "oauth_error", errParam)
		c.Redirect(http.StatusFound, h.cfg.InstallRedirectURL)
		return
	}

	user, ok := middleware.CurrentAppUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	workspace, err := h.flow.CompleteInstall(
		ctx, c.Query("code"), h.cfg.BaseURL+"/slack/install/", user.ID,
	)
	if err != nil {
		log.Error(ctx, "Slack install failed", "app_user_id", user.ID, "error", err)
		c.Redirect(http.StatusFound, h.cfg.InstallRedirectURL)
		return
	}

	log.Info(ctx, "Slack workspace installed",
		"team_id", workspace.ID,
		"team_name", workspace.Name,
		"app_user_id", user.ID,
	)
	c.Redirect(http.StatusFound, h.cfg.InstallRedirectURL)
}

// HandleLoginCallback processes GET /slack/login/. A successful login issues
// the session cookie; a failed exchange redirects without one.
func (h *OAuthHandler) HandleLoginCallback(c *gin.Context) {
	ctx := c.Request.Context()

	if !h.verified(c) {
		return
	}

	if errParam := c.Query("error"); errParam != "" {
		log.Warn(ctx, "Slack login callback returned an error", "oauth_error", errParam)
		c.Redirect(http.StatusFound, h.cfg.LoginRedirectURL)
		return
	}

	user, err := h.flow.CompleteLogin(ctx, c.Query("code"), h.cfg.BaseURL+"/slack/login/")
	if err != nil {
		log.Error(ctx, "Slack login failed", "error", err)
		c.Redirect(http.StatusFound, h.cfg.LoginRedirectURL)
		return
	}

	token, expires := h.sessions.Issue(user.ID)
	maxAge := int(time.Until(expires).Seconds())
	c.SetCookie(services.SessionCookieName, token, maxAge, "/", "", true, true)

	log.Info(ctx, "App user logged in via Slack",
		"app_user_id", user.ID,
		"username", user.Username,
	)
	c.Redirect(http.StatusFound, h.cfg.LoginRedirectURL)
}

// verified checks the Slack signature headers over the raw body. The OAuth
// callbacks carry no body, so the signature covers the empty string.
func (h *OAuthHandler) verified(c *gin.Context) bool {
	body, err := c.GetRawData()
	if err != nil {
		body = nil
	}
	if !h.verifier.Verify(body, c.GetHeader("X-Slack-Request-Timestamp"), c.GetHeader("X-Slack-Signature")) {
		log.Warn(c.Request.Context(), "Rejected OAuth callback with invalid signature", "path", c.Request.URL.Path)
		c.String(http.StatusBadRequest, signatureFailedText)
		return false
	}
	return true
}
