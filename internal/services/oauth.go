package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"slack-app-connect/internal/log"
	"slack-app-connect/internal/models"
)

var (
	ErrOAuthNoBotToken  = errors.New("oauth response carries no bot token")
	ErrOAuthNoUserToken = errors.New("oauth response carries no user token")
)

// OAuthStore is the persistence surface the OAuth flows need.
type OAuthStore interface {
	GetWorkspace(ctx context.Context, teamID string) (*models.Workspace, error)
	InstallWorkspace(ctx context.Context, workspace *models.Workspace, hook *models.WebHook, ownerAppUserID string) error
	DeleteWorkspace(ctx context.Context, teamID string) error
	GetUserMapping(ctx context.Context, slackUserID string) (*models.UserMapping, error)
	SaveUserMapping(ctx context.Context, mapping *models.UserMapping) error
	GetAppUser(ctx context.Context, appUserID string) (*models.AppUser, error)
	GetAppUserByUsername(ctx context.Context, username string) (*models.AppUser, error)
	CreateAppUser(ctx context.Context, user *models.AppUser) error
}

// SlackOAuthAPI is the Slack Web API surface the OAuth flows need.
type SlackOAuthAPI interface {
	ExchangeOAuthCode(ctx context.Context, code, redirectURI string) (*slack.OAuthV2Response, error)
	FetchTeamInfo(ctx context.Context, botToken string) (*slack.TeamInfo, error)
	FetchUserIdentity(ctx context.Context, userToken string) (*slack.UserIdentityResponse, error)
	UninstallApp(ctx context.Context, botToken string) error
}

// OAuthService implements the install, login and uninstall flows on top of the
// Slack OAuth v2 exchange.
type OAuthService struct {
	store OAuthStore
	slack SlackOAuthAPI
}

// NewOAuthService creates an OAuthService.
func NewOAuthService(store OAuthStore, slackAPI SlackOAuthAPI) *OAuthService {
	return &OAuthService{store: store, slack: slackAPI}
}

// CompleteInstall finishes an app install: exchanges the authorization code,
// enriches the workspace with team.info metadata and persists workspace,
// webhook grant and owner membership atomically. A failed exchange persists
// nothing.
func (o *OAuthService) CompleteInstall(
	ctx context.Context, code, redirectURI, installerAppUserID string,
) (*models.Workspace, error) {
	resp, err := o.slack.ExchangeOAuthCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.Team.ID == "" {
		return nil, ErrOAuthNoBotToken
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode oauth response: %w", err)
	}

	workspace := &models.Workspace{
		ID:             resp.Team.ID,
		Name:           resp.Team.Name,
		Scope:          resp.Scope,
		BotAccessToken: resp.AccessToken,
		BotUserID:      resp.BotUserID,
		AppID:          resp.AppID,
		RawResponse:    raw,
		EnterpriseID:   resp.Enterprise.ID,
		EnterpriseName: resp.Enterprise.Name,
	}

	// Icons and domain come from team.info, which the fresh bot token can
	// call. Enrichment failures do not abort the install.
	if info, err := o.slack.FetchTeamInfo(ctx, workspace.BotAccessToken); err != nil {
		log.Warn(ctx, "Skipping team metadata enrichment", "team_id", workspace.ID, "error", err)
	} else {
		applyTeamInfo(workspace, info)
	}

	hook := &models.WebHook{
		WorkspaceID:      workspace.ID,
		ChannelID:        resp.IncomingWebhook.ChannelID,
		ChannelName:      resp.IncomingWebhook.Channel,
		ConfigurationURL: resp.IncomingWebhook.ConfigurationURL,
		URL:              resp.IncomingWebhook.URL,
	}

	if err := o.store.InstallWorkspace(ctx, workspace, hook, installerAppUserID); err != nil {
		return nil, err
	}
	return workspace, nil
}

// CompleteLogin finishes a user login: exchanges the code for a user token,
// pulls the users.identity profile, upserts the user's mapping and, for a
// first login, creates the backing app user with a unique username.
func (o *OAuthService) CompleteLogin(ctx context.Context, code, redirectURI string) (*models.AppUser, error) {
	resp, err := o.slack.ExchangeOAuthCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}
	userToken := resp.AuthedUser.AccessToken
	if userToken == "" {
		return nil, ErrOAuthNoUserToken
	}

	identity, err := o.slack.FetchUserIdentity(ctx, userToken)
	if err != nil {
		return nil, err
	}

	slackUserID := identity.User.ID
	teamID := identity.Team.ID
	if teamID == "" {
		teamID = resp.Team.ID
	}

	workspaceID := ""
	switch workspace, err := o.store.GetWorkspace(ctx, teamID); {
	case err == nil:
		workspaceID = workspace.ID
	case errors.Is(err, ErrWorkspaceNotFound):
		// Login without an installed workspace is fine; the mapping keeps
		// only the team ID until an install repoints it.
	default:
		return nil, err
	}

	mapping, err := o.store.GetUserMapping(ctx, slackUserID)
	switch {
	case errors.Is(err, ErrMappingNotFound):
		mapping = &models.UserMapping{
			SlackUserID: slackUserID,
			Nonce:       uuid.New().String(),
			CreatedAt:   time.Now(),
		}
	case err != nil:
		return nil, err
	}

	mapping.SlackTeamID = teamID
	mapping.WorkspaceID = workspaceID
	mapping.AccessToken = userToken
	applyUserIdentity(mapping, identity)

	if err := o.store.SaveUserMapping(ctx, mapping); err != nil {
		return nil, err
	}

	if mapping.IsLinked() {
		return o.store.GetAppUser(ctx, mapping.AppUserID)
	}

	user, err := o.createUniqueAppUser(ctx, identity.User.Name, slackUserID)
	if err != nil {
		return nil, err
	}

	mapping.AppUserID = user.ID
	if err := o.store.SaveUserMapping(ctx, mapping); err != nil {
		return nil, err
	}

	log.Info(ctx, "Slack login linked new app user",
		"slack_user_id", slackUserID,
		"app_user_id", user.ID,
		"username", user.Username,
	)
	return user, nil
}

// createUniqueAppUser creates an app user whose username does not collide
// with an existing one, trying name, name-1, name-2 in order.
func (o *OAuthService) createUniqueAppUser(ctx context.Context, base, fallback string) (*models.AppUser, error) {
	if base == "" {
		base = fallback
	}

	username := base
	for n := 1; ; n++ {
		existing, err := o.store.GetAppUserByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			break
		}
		username = fmt.Sprintf("%s-%d", base, n)
	}

	user := &models.AppUser{Username: username}
	if err := o.store.CreateAppUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UninstallWorkspace revokes the app on the Slack side and removes the
// workspace locally. The remote revocation is best-effort: a failed
// apps.uninstall call never blocks the local delete.
func (o *OAuthService) UninstallWorkspace(ctx context.Context, teamID string) error {
	workspace, err := o.store.GetWorkspace(ctx, teamID)
	if err != nil {
		return err
	}

	if err := o.slack.UninstallApp(ctx, workspace.BotAccessToken); err != nil {
		log.Warn(ctx, "Continuing workspace delete after failed remote uninstall",
			"team_id", teamID,
			"error", err,
		)
	}

	return o.store.DeleteWorkspace(ctx, teamID)
}

func applyTeamInfo(workspace *models.Workspace, info *slack.TeamInfo) {
	if info.Name != "" {
		workspace.Name = info.Name
	}
	workspace.Domain = info.Domain
	workspace.Image34 = iconString(info.Icon, "image_34")
	workspace.Image44 = iconString(info.Icon, "image_44")
	workspace.Image68 = iconString(info.Icon, "image_68")
	workspace.Image88 = iconString(info.Icon, "image_88")
	workspace.Image102 = iconString(info.Icon, "image_102")
	workspace.Image132 = iconString(info.Icon, "image_132")
	workspace.Image230 = iconString(info.Icon, "image_230")
	workspace.ImageOriginal = iconString(info.Icon, "image_original")
	if def, ok := info.Icon["image_default"].(bool); ok {
		workspace.ImageDefault = def
	}
}

func iconString(icon map[string]interface{}, key string) string {
	if v, ok := icon[key].(string); ok {
		return v
	}
	return ""
}

func applyUserIdentity(mapping *models.UserMapping, identity *slack.UserIdentityResponse) {
	mapping.SlackEmail = identity.User.Email
	mapping.Image24 = identity.User.Image24
	mapping.Image32 = identity.User.Image32
	mapping.Image48 = identity.User.Image48
	mapping.Image72 = identity.User.Image72
	mapping.Image192 = identity.User.Image192
	mapping.Image512 = identity.User.Image512

	mapping.WorkspaceName = identity.Team.Name
	mapping.WorkspaceDomain = identity.Team.Domain
	mapping.WorkspaceImage34 = identity.Team.Image34
	mapping.WorkspaceImage44 = identity.Team.Image44
	mapping.WorkspaceImage68 = identity.Team.Image68
	mapping.WorkspaceImage88 = identity.Team.Image88
	mapping.WorkspaceImage102 = identity.Team.Image102
	mapping.WorkspaceImage132 = identity.Team.Image132
	mapping.WorkspaceImage230 = identity.Team.Image230
}
