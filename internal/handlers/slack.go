// Package handlers contains the HTTP handlers for Slack webhooks, OAuth
// callbacks, account linking and the queue worker.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"

	"slack-app-connect/internal/dispatch"
	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

const (
	signatureFailedText = "Slack signature verification failed"

	appNotInstalledText = "Slack application is not linked to your workspace. " +
		"Please ask your administrators to finish the installation."
	accountNotLinkedTextFmt = "Hi, it seems like you haven't linked your Slack account to your app account. " +
		"You can do so <%s|here>"
)

// WebhookHandler dispatches verified slash-command and interactivity webhooks
// to their registered handlers.
type WebhookHandler struct {
	verifier *services.SignatureVerifier
	registry *dispatch.Registry
	gate     *dispatch.LinkGate
	baseURL  string
}

func NewWebhookHandler(
	verifier *services.SignatureVerifier, registry *dispatch.Registry, gate *dispatch.LinkGate, baseURL string,
) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		registry: registry,
		gate:     gate,
		baseURL:  baseURL,
	}
}

// HandleCommand processes POST /slack/commands/:name/.
func (h *WebhookHandler) HandleCommand(c *gin.Context) {
	ctx := c.Request.Context()

	form, ok := h.verifiedForm(c)
	if !ok {
		return
	}
	payload := dispatch.ParseCommandPayload(form)
	name := c.Param("name")

	handler, requireLinked, ok := h.registry.Command(name)
	if !ok {
		log.Warn(ctx, "Unknown slash command", "command", name)
		c.Status(http.StatusBadRequest)
		return
	}

	mapping, workspace, ok := h.resolveCaller(c, requireLinked, payload.TeamID, payload.UserID)
	if !ok {
		return
	}

	result, err := handler(ctx, payload, mapping, workspace)
	if err != nil {
		log.Error(ctx, "Slash command handler failed",
			"command", name,
			"team_id", payload.TeamID,
			"slack_user_id", payload.UserID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	respond(c, result)
}

// HandleInteractivity processes POST /slack/interactivity/.
func (h *WebhookHandler) HandleInteractivity(c *gin.Context) {
	ctx := c.Request.Context()

	form, ok := h.verifiedForm(c)
	if !ok {
		return
	}

	var callback slack.InteractionCallback
	if err := json.Unmarshal([]byte(form.Get("payload")), &callback); err != nil {
		log.Warn(ctx, "Malformed interactivity payload", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	handler, requireLinked, ok := h.registry.Interaction(callback.Type)
	if !ok {
		log.Warn(ctx, "Unknown interactivity type", "interaction_type", string(callback.Type))
		c.Status(http.StatusBadRequest)
		return
	}

	mapping, workspace, ok := h.resolveCaller(c, requireLinked, callback.Team.ID, callback.User.ID)
	if !ok {
		return
	}

	result, err := handler(ctx, &callback, mapping, workspace)
	if err != nil {
		log.Error(ctx, "Interactivity handler failed",
			"interaction_type", string(callback.Type),
			"team_id", callback.Team.ID,
			"slack_user_id", callback.User.ID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	respond(c, result)
}

// verifiedForm reads the raw body, checks the Slack signature over the exact
// bytes and parses the form. Verification happens before any parsing.
func (h *WebhookHandler) verifiedForm(c *gin.Context) (url.Values, bool) {
	ctx := c.Request.Context()

	body, err := c.GetRawData()
	if err != nil {
		log.Error(ctx, "Failed to read webhook body", "error", err)
		c.String(http.StatusBadRequest, "failed to read request body")
		return nil, false
	}

	if !h.verifier.Verify(body, c.GetHeader("X-Slack-Request-Timestamp"), c.GetHeader("X-Slack-Signature")) {
		log.Warn(ctx, "Rejected webhook with invalid signature", "path", c.Request.URL.Path)
		c.String(http.StatusBadRequest, signatureFailedText)
		return nil, false
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		log.Warn(ctx, "Malformed webhook form body", "error", err)
		c.Status(http.StatusBadRequest)
		return nil, false
	}
	return form, true
}

// resolveCaller applies the account-link gate for handlers that need it.
// Gate outcomes that should reach the Slack user are delivered as 200
// responses with message text; Slack renders them in place of the command
// output.
func (h *WebhookHandler) resolveCaller(
	c *gin.Context, requireLinked bool, teamID, slackUserID string,
) (*models.UserMapping, *models.Workspace, bool) {
	if !requireLinked {
		return nil, nil, true
	}

	ctx := c.Request.Context()
	mapping, workspace, err := h.gate.Resolve(ctx, teamID, slackUserID)
	if err == nil {
		return mapping, workspace, true
	}

	var notLinked *dispatch.NotLinkedError
	switch {
	case errors.Is(err, dispatch.ErrAppNotInstalled):
		c.JSON(http.StatusOK, gin.H{"text": appNotInstalledText})
	case errors.As(err, &notLinked):
		connectURL := fmt.Sprintf("%s/slack/connect/%s/", h.baseURL, notLinked.Mapping.Nonce)
		c.JSON(http.StatusOK, gin.H{"text": fmt.Sprintf(accountNotLinkedTextFmt, connectURL)})
	default:
		log.Error(ctx, "Failed to resolve webhook caller",
			"team_id", teamID,
			"slack_user_id", slackUserID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
	return nil, nil, false
}

func respond(c *gin.Context, result any) {
	if result == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, result)
}
