package dispatch

import (
	"context"
	"errors"
	"fmt"

	"slack-app-connect/internal/models"
	"slack-app-connect/internal/services"
)

// ErrAppNotInstalled means the Slack team behind a request has no workspace
// record, so no bot credential exists to act with.
var ErrAppNotInstalled = errors.New("app is not installed in this workspace")

// NotLinkedError means the calling Slack user exists but has not linked an
// app account yet. It carries the mapping so callers can build the
// link-confirmation URL from its nonce.
type NotLinkedError struct {
	Mapping *models.UserMapping
}

func (e *NotLinkedError) Error() string {
	return fmt.Sprintf("slack user %s is not linked to an app account", e.Mapping.SlackUserID)
}

// GateStore is the persistence surface the link gate needs.
type GateStore interface {
	GetWorkspace(ctx context.Context, teamID string) (*models.Workspace, error)
	GetOrCreateUserMapping(ctx context.Context, slackUserID, teamID, workspaceID string) (*models.UserMapping, bool, error)
}

// LinkGate resolves the workspace and linked user mapping behind an inbound
// Slack request, materializing an unlinked mapping on first contact.
type LinkGate struct {
	store GateStore
}

func NewLinkGate(store GateStore) *LinkGate {
	return &LinkGate{store: store}
}

// Resolve returns the mapping and workspace for a caller. A missing workspace
// yields ErrAppNotInstalled; an unlinked caller yields *NotLinkedError with
// the (possibly just created) mapping attached.
func (g *LinkGate) Resolve(ctx context.Context, teamID, slackUserID string) (*models.UserMapping, *models.Workspace, error) {
	workspace, err := g.store.GetWorkspace(ctx, teamID)
	if err != nil {
		if errors.Is(err, services.ErrWorkspaceNotFound) {
			return nil, nil, ErrAppNotInstalled
		}
		return nil, nil, err
	}

	mapping, _, err := g.store.GetOrCreateUserMapping(ctx, slackUserID, teamID, workspace.ID)
	if err != nil {
		return nil, nil, err
	}
	if !mapping.IsLinked() {
		return nil, nil, &NotLinkedError{Mapping: mapping}
	}

	return mapping, workspace, nil
}
