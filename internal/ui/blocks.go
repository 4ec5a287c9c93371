// Package ui contains Slack Block Kit UI components and builders.
package ui

import (
	"fmt"

	"github.com/slack-go/slack"

	"slack-app-connect/internal/models"
)

// HomeViewBuilder builds the default App Home view blocks.
type HomeViewBuilder struct {
	baseURL string
}

// NewHomeViewBuilder creates a new home view builder. baseURL is used to
// construct the account-linking URL for unlinked users.
func NewHomeViewBuilder(baseURL string) *HomeViewBuilder {
	return &HomeViewBuilder{baseURL: baseURL}
}

// BuildHomeView constructs the home tab blocks and title for a user. Content
// depends on whether the viewing Slack user has linked an app account.
func (b *HomeViewBuilder) BuildHomeView(
	mapping *models.UserMapping, workspace *models.Workspace,
) ([]slack.Block, string) {
	blocks := []slack.Block{}

	blocks = append(blocks, b.buildWorkspaceSection(workspace)...)
	blocks = append(blocks, slack.NewDividerBlock())
	blocks = append(blocks, b.buildAccountSection(mapping)...)

	return blocks, "Overview"
}

// buildWorkspaceSection shows which workspace the app is installed in.
func (b *HomeViewBuilder) buildWorkspaceSection(workspace *models.Workspace) []slack.Block {
	text := fmt.Sprintf("Installed in *%s*", workspace.Name)
	if workspace.Domain != "" {
		text += fmt.Sprintf(" (`%s.slack.com`)", workspace.Domain)
	}

	return []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
			nil, nil,
		),
		slack.NewContextBlock(
			"",
			slack.NewTextBlockObject(slack.MarkdownType,
				"_Slash commands and interactive components are active for this workspace_",
				false, false),
		),
	}
}

// buildAccountSection shows link status, with the linking URL for unlinked
// users.
func (b *HomeViewBuilder) buildAccountSection(mapping *models.UserMapping) []slack.Block {
	blocks := []slack.Block{
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, "*Account*", false, false),
			nil, nil,
		),
	}

	if mapping.IsLinked() {
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				"Your Slack account\n_✅ Linked to your app account_",
				false, false),
			nil, nil,
		))
	} else {
		connectURL := fmt.Sprintf("%s/slack/connect/%s/", b.baseURL, mapping.Nonce)
		blocks = append(blocks, slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType,
				fmt.Sprintf("Your Slack account\n_❌ Not linked - <%s|link your account> to use commands_", connectURL),
				false, false),
			nil, nil,
		))
	}

	return blocks
}
