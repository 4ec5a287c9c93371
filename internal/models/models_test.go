package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkspace_Validate(t *testing.T) {
	tests := []struct {
		name      string
		workspace Workspace
		wantErr   error
	}{
		{
			name:      "valid workspace",
			workspace: Workspace{ID: "T123", Name: "Acme", BotAccessToken: "xoxb-1"},
			wantErr:   nil,
		},
		{
			name:      "missing team ID",
			workspace: Workspace{Name: "Acme", BotAccessToken: "xoxb-1"},
			wantErr:   ErrTeamIDRequired,
		},
		{
			name:      "missing name",
			workspace: Workspace{ID: "T123", BotAccessToken: "xoxb-1"},
			wantErr:   ErrTeamNameRequired,
		},
		{
			name:      "missing bot token",
			workspace: Workspace{ID: "T123", Name: "Acme"},
			wantErr:   ErrBotTokenRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.workspace.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestWorkspace_BotScopes(t *testing.T) {
	tests := []struct {
		name     string
		scope    string
		expected []string
	}{
		{name: "empty scope", scope: "", expected: nil},
		{name: "single scope", scope: "commands", expected: []string{"commands"}},
		{
			name:     "multiple scopes",
			scope:    "commands,chat:write,incoming-webhook",
			expected: []string{"commands", "chat:write", "incoming-webhook"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := Workspace{Scope: tt.scope}
			assert.Equal(t, tt.expected, ws.BotScopes())
		})
	}
}

func TestWorkspace_HasOwner(t *testing.T) {
	ws := Workspace{OwnerIDs: []string{"u-1", "u-2"}}
	assert.True(t, ws.HasOwner("u-1"))
	assert.False(t, ws.HasOwner("u-3"))
}

func TestUserMapping_Validate(t *testing.T) {
	valid := UserMapping{SlackUserID: "U123", Nonce: "n-1"}
	assert.NoError(t, valid.Validate())

	missingUser := UserMapping{Nonce: "n-1"}
	assert.ErrorIs(t, missingUser.Validate(), ErrSlackUserIDRequired)

	missingNonce := UserMapping{SlackUserID: "U123"}
	assert.ErrorIs(t, missingNonce.Validate(), ErrNonceRequired)
}

func TestUserMapping_IsLinked(t *testing.T) {
	unlinked := UserMapping{SlackUserID: "U123", Nonce: "n-1"}
	assert.False(t, unlinked.IsLinked())

	linked := UserMapping{SlackUserID: "U123", Nonce: "n-1", AppUserID: "u-1"}
	assert.True(t, linked.IsLinked())
}

func TestSlackEventJob_Validate(t *testing.T) {
	valid := SlackEventJob{
		ID:        "job-1",
		EventType: "app_home_opened",
		EventData: json.RawMessage(`{"user":"U123"}`),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name    string
		job     SlackEventJob
		wantErr error
	}{
		{
			name:    "missing ID",
			job:     SlackEventJob{EventType: "x", EventData: json.RawMessage(`{}`)},
			wantErr: ErrJobIDRequired,
		},
		{
			name:    "missing event type",
			job:     SlackEventJob{ID: "job-1", EventData: json.RawMessage(`{}`)},
			wantErr: ErrEventTypeRequired,
		},
		{
			name:    "missing event data",
			job:     SlackEventJob{ID: "job-1", EventType: "x"},
			wantErr: ErrEventDataRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.job.Validate(), tt.wantErr)
		})
	}
}
