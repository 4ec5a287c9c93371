// Package services provides business logic services for Slack and Firestore integration.
package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"

	"slack-app-connect/internal/log"
)

const slackHTTPTimeout = 30 * time.Second

// SlackService wraps the outbound Slack Web API: OAuth code exchange, profile
// lookups, App Home publishing and app uninstall.
type SlackService struct {
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewSlackService creates a new SlackService with the app's OAuth credentials.
// A nil httpClient falls back to a default client with a request timeout.
func NewSlackService(clientID, clientSecret string, httpClient *http.Client) *SlackService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: slackHTTPTimeout}
	}
	return &SlackService{
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

// apiClient builds a Slack API client bound to the given token.
func (s *SlackService) apiClient(token string) *slack.Client {
	return slack.New(token, slack.OptionHTTPClient(s.httpClient))
}

// ExchangeOAuthCode exchanges an authorization code for an OAuth v2 response.
// Used by both the install flow (bot token) and the login flow (user token in
// AuthedUser). A non-ok Slack response surfaces as an error.
func (s *SlackService) ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*slack.OAuthV2Response, error) {
	resp, err := slack.GetOAuthV2ResponseContext(ctx, s.httpClient, s.clientID, s.clientSecret, code, redirectURI)
	if err != nil {
		log.Warn(ctx, "Slack OAuth code exchange failed", "error", err)
		return nil, fmt.Errorf("oauth code exchange failed: %w", err)
	}
	return resp, nil
}

// FetchTeamInfo retrieves team profile metadata using a workspace bot token.
func (s *SlackService) FetchTeamInfo(ctx context.Context, botToken string) (*slack.TeamInfo, error) {
	info, err := s.apiClient(botToken).GetTeamInfoContext(ctx)
	if err != nil {
		log.Error(ctx, "Failed to fetch team info",
			"error", err,
			"operation", "team_info",
		)
		return nil, fmt.Errorf("failed to fetch team info: %w", err)
	}
	return info, nil
}

// FetchUserIdentity retrieves the identity profile behind a user access token.
func (s *SlackService) FetchUserIdentity(ctx context.Context, userToken string) (*slack.UserIdentityResponse, error) {
	identity, err := s.apiClient(userToken).GetUserIdentityContext(ctx)
	if err != nil {
		log.Error(ctx, "Failed to fetch user identity",
			"error", err,
			"operation", "users_identity",
		)
		return nil, fmt.Errorf("failed to fetch user identity: %w", err)
	}
	return identity, nil
}

// PublishHomeView publishes an App Home view for a user, using the owning
// workspace's bot token. Slack home views carry no title field, so the title
// is rendered as a leading header block.
func (s *SlackService) PublishHomeView(
	ctx context.Context, botToken, slackUserID string, blocks []slack.Block, title string,
) error {
	view := slack.HomeTabViewRequest{
		Type:   slack.VTHomeTab,
		Blocks: slack.Blocks{BlockSet: blocks},
	}
	if title != "" {
		header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false))
		view.Blocks.BlockSet = append([]slack.Block{header}, blocks...)
	}

	_, err := s.apiClient(botToken).PublishViewContext(ctx, slackUserID, view, "")
	if err != nil {
		log.Error(ctx, "Failed to publish home view",
			"error", err,
			"slack_user_id", slackUserID,
			"operation", "views_publish",
		)
		return fmt.Errorf("failed to publish home view for %s: %w", slackUserID, err)
	}
	return nil
}

// UninstallApp asks Slack to remove the app from a workspace. Callers on the
// workspace-deletion path treat failures as best-effort.
func (s *SlackService) UninstallApp(ctx context.Context, botToken string) error {
	if err := s.apiClient(botToken).UninstallApp(s.clientID, s.clientSecret); err != nil {
		log.Warn(ctx, "Slack app uninstall call failed", "error", err)
		return fmt.Errorf("apps.uninstall failed: %w", err)
	}
	return nil
}
