package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrTeamIDRequired      = errors.New("slack team ID is required")
	ErrTeamNameRequired    = errors.New("team name is required")
	ErrBotTokenRequired    = errors.New("bot access token is required")
	ErrSlackUserIDRequired = errors.New("slack user ID is required")
	ErrNonceRequired       = errors.New("nonce is required")
	ErrWorkspaceIDRequired = errors.New("workspace ID is required")
	ErrWebhookURLRequired  = errors.New("webhook URL is required")
	ErrUsernameRequired    = errors.New("username is required")
	ErrJobIDRequired       = errors.New("job ID is required")
	ErrEventTypeRequired   = errors.New("event type is required")
	ErrEventDataRequired   = errors.New("event data is required")
)

// Workspace represents a connected Slack team and its bot credential.
type Workspace struct {
	ID             string          `firestore:"id"`              // Slack team ID (primary key)
	Name           string          `firestore:"name"`            // Workspace display name
	Scope          string          `firestore:"scope"`           // Granted scopes, comma-joined
	BotAccessToken string          `firestore:"bot_access_token"`
	BotUserID      string          `firestore:"bot_user_id"`
	AppID          string          `firestore:"app_id,omitempty"`
	RawResponse    json.RawMessage `firestore:"raw_response"` // Full OAuth response, kept for audit
	OwnerIDs       []string        `firestore:"owner_ids"`    // App users who installed the app

	Domain        string `firestore:"domain,omitempty"`
	Image34       string `firestore:"image_34,omitempty"`
	Image44       string `firestore:"image_44,omitempty"`
	Image68       string `firestore:"image_68,omitempty"`
	Image88       string `firestore:"image_88,omitempty"`
	Image102      string `firestore:"image_102,omitempty"`
	Image132      string `firestore:"image_132,omitempty"`
	Image230      string `firestore:"image_230,omitempty"`
	ImageOriginal string `firestore:"image_original,omitempty"`
	ImageDefault  bool   `firestore:"image_default,omitempty"`

	EnterpriseID   string `firestore:"enterprise_id,omitempty"`
	EnterpriseName string `firestore:"enterprise_name,omitempty"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Validate validates required fields for Workspace.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return ErrTeamIDRequired
	}
	if w.Name == "" {
		return ErrTeamNameRequired
	}
	if w.BotAccessToken == "" {
		return ErrBotTokenRequired
	}
	return nil
}

// BotScopes returns the granted OAuth scopes as a list.
func (w *Workspace) BotScopes() []string {
	if w.Scope == "" {
		return nil
	}
	return strings.Split(w.Scope, ",")
}

// HasOwner reports whether the given app user already owns this workspace.
func (w *Workspace) HasOwner(appUserID string) bool {
	for _, id := range w.OwnerIDs {
		if id == appUserID {
			return true
		}
	}
	return false
}

// UserMapping binds an external Slack user identity to an app user account.
// AppUserID is empty until the mapping is linked; the nonce is the only
// credential that authorizes completing the link.
type UserMapping struct {
	SlackUserID string `firestore:"slack_user_id"` // Primary key
	SlackTeamID string `firestore:"slack_team_id"` // Denormalized team ID
	WorkspaceID string `firestore:"workspace_id,omitempty"`
	AppUserID   string `firestore:"app_user_id,omitempty"`
	Nonce       string `firestore:"nonce"`
	AccessToken string `firestore:"access_token,omitempty"` // OAuth user token

	SlackEmail string `firestore:"slack_email,omitempty"`
	Image24    string `firestore:"image_24,omitempty"`
	Image32    string `firestore:"image_32,omitempty"`
	Image48    string `firestore:"image_48,omitempty"`
	Image72    string `firestore:"image_72,omitempty"`
	Image192   string `firestore:"image_192,omitempty"`
	Image512   string `firestore:"image_512,omitempty"`
	Image1024  string `firestore:"image_1024,omitempty"`

	// Snapshot of workspace presentation data as of the last profile refresh.
	WorkspaceName     string `firestore:"workspace_name,omitempty"`
	WorkspaceDomain   string `firestore:"workspace_domain,omitempty"`
	WorkspaceImage34  string `firestore:"workspace_image_34,omitempty"`
	WorkspaceImage44  string `firestore:"workspace_image_44,omitempty"`
	WorkspaceImage68  string `firestore:"workspace_image_68,omitempty"`
	WorkspaceImage88  string `firestore:"workspace_image_88,omitempty"`
	WorkspaceImage102 string `firestore:"workspace_image_102,omitempty"`
	WorkspaceImage132 string `firestore:"workspace_image_132,omitempty"`
	WorkspaceImage230 string `firestore:"workspace_image_230,omitempty"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Validate validates required fields for UserMapping.
func (m *UserMapping) Validate() error {
	if m.SlackUserID == "" {
		return ErrSlackUserIDRequired
	}
	if m.Nonce == "" {
		return ErrNonceRequired
	}
	return nil
}

// IsLinked reports whether the mapping is bound to an app user.
func (m *UserMapping) IsLinked() bool {
	return m.AppUserID != ""
}

// WebHook records a single incoming-webhook grant from an OAuth install.
// Never mutated after creation; removed only when its workspace is deleted.
type WebHook struct {
	ID               string    `firestore:"id"` // Auto-generated document ID
	WorkspaceID      string    `firestore:"workspace_id"`
	ChannelID        string    `firestore:"channel_id"`
	ChannelName      string    `firestore:"channel_name"`
	ConfigurationURL string    `firestore:"configuration_url"`
	URL              string    `firestore:"url"`
	CreatedAt        time.Time `firestore:"created_at"`
}

// Validate validates required fields for WebHook.
func (h *WebHook) Validate() error {
	if h.WorkspaceID == "" {
		return ErrWorkspaceIDRequired
	}
	if h.URL == "" {
		return ErrWebhookURLRequired
	}
	return nil
}

// AppUser is an application user account that Slack identities link against.
type AppUser struct {
	ID        string    `firestore:"id"` // Random UUID
	Username  string    `firestore:"username"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Validate validates required fields for AppUser.
func (u *AppUser) Validate() error {
	if u.Username == "" {
		return ErrUsernameRequired
	}
	return nil
}

// SlackEventJob carries one Events API payload through the task queue to the
// in-process fan-out bus.
type SlackEventJob struct {
	ID         string          `json:"id"`
	EventType  string          `json:"event_type"`
	TeamID     string          `json:"team_id"`
	EventData  json.RawMessage `json:"event_data"`
	TraceID    string          `json:"trace_id"`
	ReceivedAt time.Time       `json:"received_at"`
}

// Validate validates required fields for SlackEventJob.
func (j *SlackEventJob) Validate() error {
	if j.ID == "" {
		return ErrJobIDRequired
	}
	if j.EventType == "" {
		return ErrEventTypeRequired
	}
	if len(j.EventData) == 0 {
		return ErrEventDataRequired
	}
	return nil
}
